package server

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LoggingInterceptor logs every unary call with its procedure, outcome code,
// and duration. Calls without an X-Request-ID header get a fresh one.
func LoggingInterceptor(logger *zap.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			id := req.Header().Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			start := time.Now()
			resp, err := next(ctx, req)

			fields := []zap.Field{
				zap.String("procedure", req.Spec().Procedure),
				zap.String("request_id", id),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("rpc failed", append(fields, zap.String("code", connect.CodeOf(err).String()), zap.Error(err))...)
				return nil, err
			}
			resp.Header().Set("X-Request-ID", id)
			logger.Info("rpc", fields...)
			return resp, nil
		}
	}
}
