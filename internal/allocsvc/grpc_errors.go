package allocsvc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/constellation-allocator/core"
	"github.com/signalsfoundry/constellation-allocator/kb"
)

// ErrBadRequest marks malformed request messages.
var ErrBadRequest = errors.New("bad request")

// ToStatusError maps allocator errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, core.ErrOutOfRange):
		return status.Error(codes.OutOfRange, err.Error())

	case errors.Is(err, ErrBadRequest),
		errors.Is(err, core.ErrInvalidDemand),
		errors.Is(err, core.ErrInvalidTrack),
		errors.Is(err, core.ErrDuplicateID),
		errors.Is(err, core.ErrEmptyID),
		errors.Is(err, core.ErrLimitExceeded):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, kb.ErrSatelliteNotFound),
		errors.Is(err, kb.ErrApplicationNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, kb.ErrSatelliteExists),
		errors.Is(err, kb.ErrApplicationExists):
		return status.Error(codes.AlreadyExists, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
