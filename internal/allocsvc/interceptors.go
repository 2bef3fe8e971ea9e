package allocsvc

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/signalsfoundry/constellation-allocator/internal/logging"
	"github.com/signalsfoundry/constellation-allocator/internal/observability"
)

const runIDMetadataKey = "x-run-id"

// RunIDUnaryServerInterceptor ensures a run_id is present on the context,
// sourcing it from inbound metadata if provided, and attaches a per-request
// logger annotated with run_id and method.
func RunIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if incoming := firstHeader(md, runIDMetadataKey); incoming != "" {
				ctx = logging.ContextWithRunID(ctx, incoming)
			}
		}

		ctx, reqLog := logging.WithRunLogger(ctx, base.With(logging.String("method", info.FullMethod)))
		ctx = logging.ContextWithLogger(ctx, reqLog)

		return handler(ctx, req)
	}
}

// TracingUnaryServerInterceptor names the RPC span and tags it with the
// run_id. It starts a server span when no otelgrpc handler is installed.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		spanName := fmt.Sprintf("%s/%s", service, method)

		span := trace.SpanFromContext(ctx)
		created := false
		if !span.SpanContext().IsValid() {
			ctx, span = observability.Tracer().Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindServer))
			created = true
		} else {
			span.SetName(spanName)
		}

		attrs := []attribute.KeyValue{
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
			attribute.String("rpc.full_method", strings.TrimPrefix(info.FullMethod, "/")),
		}
		if runID := logging.RunIDFromContext(ctx); runID != "" {
			attrs = append(attrs, attribute.String("run_id", runID))
		}
		span.SetAttributes(attrs...)

		resp, err := handler(ctx, req)
		if err != nil {
			span.RecordError(err)
		}
		if created {
			span.End()
		}
		return resp, err
	}
}

// RunIDUnaryClientInterceptor forwards the caller's run_id so server logs
// and history rows line up with the client's.
func RunIDUnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if runID := logging.RunIDFromContext(ctx); runID != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, runIDMetadataKey, runID)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func firstHeader(md metadata.MD, key string) string {
	if md == nil {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
