package interceptors

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type contextKey string

const (
	// RequestIDContextKey is the key used to store/retrieve the request id from context
	RequestIDContextKey contextKey = "request_id"

	requestIDHeader = "x-request-id"
)

// NewUnaryRequestIDInterceptor tags every unary call with a request id.
func NewUnaryRequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(withRequestID(ctx), req)
	}
}

// NewStreamRequestIDInterceptor tags every stream with a request id.
func NewStreamRequestIDInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		// [STREAM_WRAPPING] Override the context of the original stream
		wrapped := &wrappedStream{
			ServerStream: ss,
			ctx:          withRequestID(ss.Context()),
		}
		return handler(srv, wrapped)
	}
}

// withRequestID reuses the caller's id when it sent one.
func withRequestID(ctx context.Context) context.Context {
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(requestIDHeader); len(v) > 0 {
			id = v[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, RequestIDContextKey, id)
}

// wrappedStream is a thin wrapper to inject a new context into a gRPC stream.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}

// RequestID is a helper to extract the request id from context safely.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDContextKey).(string)
	return id, ok
}
