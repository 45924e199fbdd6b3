package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/atlekbai/aicfo/internal/frame"
	"github.com/atlekbai/aicfo/internal/viewtable"
)

// ServiceName is the Connect service path component.
const ServiceName = "aicfo.v1.QueryService"

// Procedure paths.
const (
	TransformProcedure = "/" + ServiceName + "/Transform"
	ExecuteProcedure   = "/" + ServiceName + "/Execute"
	NextPageProcedure  = "/" + ServiceName + "/NextPage"
	RenderProcedure    = "/" + ServiceName + "/Render"
	AnswerProcedure    = "/" + ServiceName + "/Answer"
)

// RegisterHandler mounts the unary procedures. Requests and responses are
// google.protobuf.Struct messages.
func (s *QueryService) RegisterHandler(interceptors ...connect.Interceptor) (string, http.Handler) {
	opts := []connect.HandlerOption{connect.WithInterceptors(interceptors...)}
	mux := http.NewServeMux()
	mux.Handle(TransformProcedure, connect.NewUnaryHandler(TransformProcedure, s.transformRPC, opts...))
	mux.Handle(ExecuteProcedure, connect.NewUnaryHandler(ExecuteProcedure, s.executeRPC, opts...))
	mux.Handle(NextPageProcedure, connect.NewUnaryHandler(NextPageProcedure, s.nextPageRPC, opts...))
	mux.Handle(RenderProcedure, connect.NewUnaryHandler(RenderProcedure, s.renderRPC, opts...))
	mux.Handle(AnswerProcedure, connect.NewUnaryHandler(AnswerProcedure, s.answerRPC, opts...))
	return "/" + ServiceName + "/", mux
}

func (s *QueryService) transformRPC(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	in, err := transformInput(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	out, err := s.Transform(in)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return structResponse(out)
}

func (s *QueryService) executeRPC(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	sql := stringField(req.Msg, "query")
	if sql == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("query is required"))
	}
	page, err := s.Execute(ctx, sql, intField(req.Msg, "limit"))
	if err != nil {
		return nil, executeError(err)
	}
	return structResponse(page)
}

func (s *QueryService) nextPageRPC(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	sql := stringField(req.Msg, "query")
	if sql == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("query is required"))
	}
	page, err := s.NextPage(ctx, sql, intField(req.Msg, "limit"))
	if err != nil {
		return nil, executeError(err)
	}
	return structResponse(page)
}

func executeError(err error) error {
	if errors.Is(err, ErrRejected) {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func (s *QueryService) renderRPC(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	rows, err := resultSetField(req.Msg, "data")
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return structResponse(s.Render(stringField(req.Msg, "template"), rows))
}

func (s *QueryService) answerRPC(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	in, err := transformInput(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	out, err := s.Answer(ctx, in, stringField(req.Msg, "template"))
	if err != nil {
		return nil, executeError(err)
	}
	return structResponse(out)
}

func transformInput(msg *structpb.Struct) (TransformInput, error) {
	in := TransformInput{
		Query:     stringField(msg, "query"),
		Table:     stringField(msg, "table"),
		CompanyID: stringField(msg, "company_id"),
		User: viewtable.User{
			UserID:    stringField(msg, "user_id"),
			UseInttID: stringField(msg, "use_intt_id"),
		},
		Limit: intField(msg, "limit"),
	}
	if in.Query == "" {
		return in, errors.New("query is required")
	}
	if in.Table == "" {
		return in, errors.New("table is required")
	}
	return in, nil
}

func stringField(msg *structpb.Struct, name string) string {
	return msg.GetFields()[name].GetStringValue()
}

func intField(msg *structpb.Struct, name string) int {
	return int(msg.GetFields()[name].GetNumberValue())
}

// resultSetField decodes a list of records. An optional "columns" list
// restores the column order that Struct maps lose.
func resultSetField(msg *structpb.Struct, name string) (*frame.ResultSet, error) {
	v, ok := msg.GetFields()[name]
	if !ok {
		return frame.NewResultSet(nil, nil), nil
	}
	if v.GetListValue() == nil {
		return nil, fmt.Errorf("%s must be a list of records", name)
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	var rs frame.ResultSet
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, err
	}
	if cols := msg.GetFields()["columns"].GetListValue(); cols != nil {
		rs.Columns = rs.Columns[:0]
		for _, c := range cols.GetValues() {
			rs.Columns = append(rs.Columns, c.GetStringValue())
		}
	}
	return &rs, nil
}

// structResponse converts a JSON-tagged value into a Struct response.
func structResponse(v any) (*connect.Response[structpb.Struct], error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("marshal result: %w", err))
	}
	var st structpb.Struct
	if err := st.UnmarshalJSON(raw); err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("marshal result: %w", err))
	}
	return connect.NewResponse(&st), nil
}
