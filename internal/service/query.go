package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/aicfo/internal/answer"
	"github.com/atlekbai/aicfo/internal/frame"
	"github.com/atlekbai/aicfo/internal/metrics"
	"github.com/atlekbai/aicfo/internal/query"
	"github.com/atlekbai/aicfo/internal/schema"
	"github.com/atlekbai/aicfo/internal/sqlast"
	"github.com/atlekbai/aicfo/internal/viewtable"
)

// ErrRejected wraps every reason Execute refuses to run a query.
var ErrRejected = errors.New("query rejected")

// Executor runs rewritten SQL. *db.Executor satisfies it.
type Executor interface {
	query.Querier
	Fetch(ctx context.Context, sql string) (*frame.ResultSet, error)
}

// TransformInput is one generated query bound to a tenant.
type TransformInput struct {
	Query     string
	Table     string
	CompanyID string
	User      viewtable.User
	Limit     int
}

// TransformOutput is the executable form of a generated query.
type TransformOutput struct {
	Query      string                         `json:"query"`
	DateRanges map[string]viewtable.DateRange `json:"date_ranges"`
	Scopes     []string                       `json:"scopes"`
	FutureDate bool                           `json:"future_date"`
}

// Page is one executed page of a query.
type Page struct {
	Query     string           `json:"query"`
	Columns   []string         `json:"columns"`
	Rows      *frame.ResultSet `json:"rows"`
	Remaining int              `json:"remaining"`
	HasNext   bool             `json:"has_next"`
}

// AnswerOutput combines every stage of a question.
type AnswerOutput struct {
	Transform *TransformOutput `json:"transform"`
	Page      *Page            `json:"page"`
	Answer    *answer.Result   `json:"answer"`
}

// QueryService runs generated queries from transformation to the rendered
// answer.
type QueryService struct {
	cache        *schema.Cache
	transformer  *viewtable.Transformer
	exec         Executor
	renderer     *answer.Renderer
	defaultLimit int
	logger       *zap.Logger
}

// Option configures a QueryService.
type Option func(*QueryService)

// WithDefaultLimit sets the page size used when a request gives none.
func WithDefaultLimit(n int) Option {
	return func(s *QueryService) { s.defaultLimit = query.NormalizeLimit(n) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *QueryService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewQueryService wires the pipeline. exec may be nil for a service that
// only transforms and renders.
func NewQueryService(cache *schema.Cache, tr *viewtable.Transformer, exec Executor, renderer *answer.Renderer, opts ...Option) *QueryService {
	s := &QueryService{
		cache:        cache,
		transformer:  tr,
		exec:         exec,
		renderer:     renderer,
		defaultLimit: query.DefaultLimit,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *QueryService) limit(n int) int {
	if n < 1 {
		return s.defaultLimit
	}
	return query.NormalizeLimit(n)
}

// Transform scopes the query to the tenant, then adds ORDER BY and the first
// page LIMIT.
func (s *QueryService) Transform(in TransformInput) (*TransformOutput, error) {
	def, err := s.cache.Lookup(in.Table)
	if err != nil {
		return nil, err
	}
	res, err := s.transformer.Transform(viewtable.Request{
		Query:     in.Query,
		Table:     in.Table,
		CompanyID: in.CompanyID,
		User:      in.User,
	})
	if err != nil {
		return nil, err
	}
	sql := query.AddOrderBy(res.Query, def)
	sql = query.AddLimit(sql, s.limit(in.Limit), 0)
	return &TransformOutput{
		Query:      sql,
		DateRanges: res.DateRanges,
		Scopes:     res.Scopes,
		FutureDate: res.FutureDate,
	}, nil
}

// Execute runs the page and the remaining-row count concurrently. A failed
// count is logged and reported as one more row than the page holds.
//
// Only a single read-only SELECT whose tables are all tenant view calls is
// run; anything else fails with ErrRejected.
func (s *QueryService) Execute(ctx context.Context, sql string, limit int) (*Page, error) {
	if err := checkScoped(sql); err != nil {
		s.logger.Warn("execute: query rejected", zap.Error(err))
		return nil, err
	}
	if s.exec == nil {
		return nil, fmt.Errorf("no database configured")
	}
	limit = s.limit(limit)

	g, gctx := errgroup.WithContext(ctx)

	var rows *frame.ResultSet
	g.Go(func() error {
		var err error
		rows, err = s.exec.Fetch(gctx, sql)
		return err
	})

	var remaining int
	g.Go(func() error {
		var err error
		remaining, err = query.CountRows(gctx, s.exec, sql, limit)
		if err != nil {
			metrics.IncrementCountRowsErrors()
			s.logger.Warn("count rows failed", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return &Page{
		Query:     sql,
		Columns:   rows.Columns,
		Rows:      rows,
		Remaining: remaining,
		HasNext:   remaining > limit,
	}, nil
}

// NextPage advances the query's OFFSET by one page and executes it.
func (s *QueryService) NextPage(ctx context.Context, sql string, limit int) (*Page, error) {
	limit = s.limit(limit)
	return s.Execute(ctx, query.Pagination(sql, limit), limit)
}

// checkScoped accepts sql only when every table it reads is a call to a
// logical table function, as Transform produces.
func checkScoped(sql string) error {
	stmt, err := sqlast.Parse(sql)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	if err := sqlast.CheckReadOnly(stmt.Select); err != nil {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	if rels := sqlast.Relations(stmt.Select); len(rels) > 0 {
		if schema.IsLogicalTable(rels[0]) {
			return fmt.Errorf("%w: %s is not scoped to a tenant", ErrRejected, rels[0])
		}
		return fmt.Errorf("%w: table %s is not a logical table", ErrRejected, rels[0])
	}
	for _, fn := range sqlast.TableFunctions(stmt.Select) {
		if !schema.IsLogicalTable(fn) {
			return fmt.Errorf("%w: function %s is not a logical table", ErrRejected, fn)
		}
	}
	return nil
}

// Render renders an answer template over rows.
func (s *QueryService) Render(template string, rows *frame.ResultSet) *answer.Result {
	return s.renderer.Render(template, rows)
}

// Answer transforms, executes and renders in sequence.
func (s *QueryService) Answer(ctx context.Context, in TransformInput, template string) (*AnswerOutput, error) {
	tr, err := s.Transform(in)
	if err != nil {
		return nil, err
	}
	page, err := s.Execute(ctx, tr.Query, in.Limit)
	if err != nil {
		return nil, err
	}
	return &AnswerOutput{
		Transform: tr,
		Page:      page,
		Answer:    s.Render(template, page.Rows),
	}, nil
}
