package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/telcoassist-server/internal/logger"
)

// Logging is a unary interceptor that logs gRPC requests and results.
type Logging struct {
	logger *logger.Logger
}

// NewLogging creates a new Logging middleware.
func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

// HandleGRPC logs method, duration and status code of each unary call.
// Message bodies are never logged.
func (l *Logging) HandleGRPC(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()

	resp, err := handler(ctx, req)

	code := status.Code(err)
	attrs := []any{
		"method", info.FullMethod,
		"duration_ms", time.Since(start).Milliseconds(),
		"status", code.String(),
	}

	switch code {
	case codes.OK:
		l.logger.Info("gRPC request completed", attrs...)
	case codes.Internal, codes.Unknown, codes.Unavailable:
		l.logger.Error("gRPC request failed", append(attrs, "error", err.Error())...)
	default:
		l.logger.Warn("gRPC request rejected", append(attrs, "error", err.Error())...)
	}

	return resp, err
}

// Recover converts a panic in a handler into an Internal status.
func (l *Logging) Recover(p any) error {
	l.logger.Error("gRPC handler panicked", "panic", p)
	return status.Error(codes.Internal, "internal server error")
}
