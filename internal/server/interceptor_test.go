package server

import (
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	interceptor := LoggingInterceptor(zap.New(core))

	ok := interceptor(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return connect.NewResponse(&structpb.Struct{}), nil
	})
	req := connect.NewRequest(&structpb.Struct{})
	req.Header().Set("X-Request-ID", "req-1")
	resp, err := ok(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.Header().Get("X-Request-ID"))

	failing := interceptor(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("table is required"))
	})
	_, err = failing(context.Background(), connect.NewRequest(&structpb.Struct{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	require.Equal(t, 1, logs.FilterMessage("rpc").Len())
	failed := logs.FilterMessage("rpc failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "invalid_argument", failed[0].ContextMap()["code"])
	assert.NotEmpty(t, failed[0].ContextMap()["request_id"])
}
