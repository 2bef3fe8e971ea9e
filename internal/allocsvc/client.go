package allocsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote AllocationService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Allocate asks the server to allocate req.Step.
func (c *Client) Allocate(ctx context.Context, req AllocateRequest, opts ...grpc.CallOption) (*AllocateResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AllocateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return responseFromStruct(out), nil
}

// Describe fetches the server's scenario summary.
func (c *Client) Describe(ctx context.Context, opts ...grpc.CallOption) (*Description, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DescribeMethod, &structpb.Struct{}, out, opts...); err != nil {
		return nil, err
	}
	return descriptionFromStruct(out), nil
}
