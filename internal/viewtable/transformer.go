// Package viewtable rewrites logical table references in generated SQL into
// tenant-scoped table-valued function calls. Each region of a query (the main
// body, every UNION branch and every subquery) is dated independently.
package viewtable

import (
	"fmt"
	"time"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/atlekbai/aicfo/internal/metrics"
	"github.com/atlekbai/aicfo/internal/schema"
	"github.com/atlekbai/aicfo/internal/sqlast"
)

// DateLayout is the YYYYMMDD layout of every date exchanged by the transformer.
const DateLayout = "20060102"

// Scope ids.
const (
	ScopeMain       = "main"
	ScopeLeftUnion  = "left_union"
	ScopeRightUnion = "right_union"
)

// DateRange is an inclusive YYYYMMDD window.
type DateRange struct {
	From string `json:"from_date"`
	To   string `json:"to_date"`
}

// User identifies the caller inside a tenant.
type User struct {
	UserID    string `json:"user_id"`
	UseInttID string `json:"use_intt_id"`
}

// Flags is the caller-owned side channel updated by Transform.
type Flags struct {
	FutureDate bool
}

// Request is one transformation call.
type Request struct {
	Query     string
	Table     string // logical table key: amt, trsc, stock
	CompanyID string
	User      User
	Flags     *Flags // optional; FutureDate is set when a window was clamped
}

// Result is the rewritten query and the window used for every scope.
type Result struct {
	Query      string
	DateRanges map[string]DateRange
	Scopes     []string // scope ids in creation order
	FutureDate bool
}

// Transformer rewrites queries against the logical table registry.
type Transformer struct {
	cache  *schema.Cache
	now    func() time.Time
	loc    *time.Location
	logger *zap.Logger

	// beforeScope runs before a scope is rewritten; an error aborts that scope.
	beforeScope func(scope string) error
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(t *Transformer) { t.now = now }
}

// WithLocation sets the time zone "today" is computed in.
func WithLocation(loc *time.Location) Option {
	return func(t *Transformer) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(t *Transformer) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a Transformer.
func New(cache *schema.Cache, opts ...Option) *Transformer {
	t := &Transformer{
		cache:  cache,
		now:    time.Now,
		loc:    time.Local,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Today returns the current date in the configured zone.
func (t *Transformer) Today() string {
	return t.now().In(t.loc).Format(DateLayout)
}

// Transform rewrites every aicfo_get_all_* reference in req.Query. It only
// fails for an unknown table key; unparseable SQL is returned unchanged with
// a (today, today) main window.
func (t *Transformer) Transform(req Request) (*Result, error) {
	def, err := t.cache.Lookup(req.Table)
	if err != nil {
		return nil, err
	}
	today := t.Today()

	stmt, err := sqlast.Parse(req.Query)
	if err != nil {
		t.logger.Warn("transform: query not parseable, returning it unchanged", zap.Error(err))
		metrics.ObserveTransform(metrics.OutcomeParseError, false)
		return fallbackResult(req.Query, today), nil
	}

	r := &rewriter{
		t:      t,
		req:    req,
		def:    def,
		today:  today,
		ranges: make(map[string]DateRange),
	}
	if err := r.rewriteRoot(stmt.Select); err != nil {
		t.logger.Warn("transform: rewrite failed, returning query unchanged", zap.Error(err))
		metrics.ObserveTransform(metrics.OutcomeParseError, false)
		return fallbackResult(req.Query, today), nil
	}

	out, err := stmt.Deparse()
	if err != nil {
		t.logger.Warn("transform: deparse failed, returning query unchanged", zap.Error(err))
		metrics.ObserveTransform(metrics.OutcomeParseError, false)
		return fallbackResult(req.Query, today), nil
	}

	outcome := metrics.OutcomeOK
	if r.failed > 0 {
		outcome = metrics.OutcomeSubqueryError
	}
	metrics.ObserveTransform(outcome, r.clamped)
	if req.Flags != nil && r.clamped {
		req.Flags.FutureDate = true
	}

	t.logger.Debug("transform: rewritten",
		zap.String("table", def.Key),
		zap.Strings("scopes", r.scopes),
		zap.Bool("future_date", r.clamped),
		zap.Int("failed_subqueries", r.failed),
	)
	return &Result{
		Query:      out,
		DateRanges: r.ranges,
		Scopes:     r.scopes,
		FutureDate: r.clamped,
	}, nil
}

func fallbackResult(query, today string) *Result {
	return &Result{
		Query:      query,
		DateRanges: map[string]DateRange{ScopeMain: {From: today, To: today}},
		Scopes:     []string{ScopeMain},
	}
}

// rewriter carries the state of one Transform call.
type rewriter struct {
	t     *Transformer
	req   Request
	def   *schema.TableDef
	today string

	ranges     map[string]DateRange
	scopes     []string
	subqueries int
	clamped    bool
	failed     int
}

type checkpoint struct {
	scopes     int
	subqueries int
	clamped    bool
}

func (r *rewriter) mark() checkpoint {
	return checkpoint{scopes: len(r.scopes), subqueries: r.subqueries, clamped: r.clamped}
}

func (r *rewriter) rollback(cp checkpoint) {
	for _, s := range r.scopes[cp.scopes:] {
		delete(r.ranges, s)
	}
	r.scopes = r.scopes[:cp.scopes]
	r.subqueries = cp.subqueries
	r.clamped = cp.clamped
}

func (r *rewriter) rewriteRoot(sel *pg_query.SelectStmt) error {
	if sel.Op == pg_query.SetOperation_SETOP_NONE {
		if err := r.enter(ScopeMain); err != nil {
			return err
		}
		r.rewriteScope(sel, ScopeMain, r.resolve(sel.WhereClause, nil))
		return nil
	}

	branches := setOpBranches(sel)
	var first DateRange
	for i, branch := range branches {
		scope := unionScope(i, len(branches))
		if err := r.enter(scope); err != nil {
			return err
		}
		rng := r.resolve(branch.WhereClause, nil)
		if i == 0 {
			first = rng
		}
		r.rewriteScope(branch, scope, rng)
	}
	r.rewriteCTEs(sel, first)
	return nil
}

func unionScope(i, n int) string {
	switch i {
	case 0:
		return ScopeLeftUnion
	case n - 1:
		return ScopeRightUnion
	default:
		return fmt.Sprintf("union_%d", i)
	}
}

// setOpBranches flattens a chain of set operations into its leaf SELECTs,
// leftmost first.
func setOpBranches(sel *pg_query.SelectStmt) []*pg_query.SelectStmt {
	if sel == nil {
		return nil
	}
	if sel.Op == pg_query.SetOperation_SETOP_NONE {
		return []*pg_query.SelectStmt{sel}
	}
	return append(setOpBranches(sel.Larg), setOpBranches(sel.Rarg)...)
}

func (r *rewriter) enter(scope string) error {
	if r.t.beforeScope != nil {
		if err := r.t.beforeScope(scope); err != nil {
			return fmt.Errorf("scope %s: %w", scope, err)
		}
	}
	return nil
}

// rewriteScope replaces the logical table references that belong to sel and
// hands every nested SELECT to rewriteSubquery.
func (r *rewriter) rewriteScope(sel *pg_query.SelectStmt, scope string, rng DateRange) {
	r.ranges[scope] = rng
	r.scopes = append(r.scopes, scope)

	sqlast.Walk(sqlast.SelectNode(sel), func(n *pg_query.Node) bool {
		switch v := n.Node.(type) {
		case *pg_query.Node_SelectStmt:
			if v.SelectStmt == sel {
				return true
			}
			r.rewriteSubquery(n, rng)
			return false
		case *pg_query.Node_RangeVar:
			if schema.IsLogicalTable(v.RangeVar.Relname) {
				n.Node = r.viewCall(v.RangeVar, rng).Node
			}
			return false
		}
		return true
	})
}

// rewriteSubquery rewrites one nested SELECT in isolation. On failure the node
// is restored from a snapshot and its scopes are discarded.
func (r *rewriter) rewriteSubquery(n *pg_query.Node, parent DateRange) {
	snapshot := proto.Clone(n).(*pg_query.Node)
	cp := r.mark()
	restore := func(reason any) {
		n.Node = snapshot.Node
		r.rollback(cp)
		r.failed++
		r.t.logger.Warn("transform: subquery left unrewritten", zap.Any("reason", reason))
	}
	defer func() {
		if rec := recover(); rec != nil {
			restore(rec)
		}
	}()

	if err := r.subquery(n.GetSelectStmt(), parent); err != nil {
		restore(err.Error())
	}
}

func (r *rewriter) subquery(sel *pg_query.SelectStmt, parent DateRange) error {
	if sel == nil {
		return fmt.Errorf("subquery without SELECT")
	}
	for _, branch := range setOpBranches(sel) {
		r.subqueries++
		scope := fmt.Sprintf("subquery_%d", r.subqueries)
		if err := r.enter(scope); err != nil {
			return err
		}
		r.rewriteScope(branch, scope, r.resolve(branch.WhereClause, &parent))
	}
	if sel.Op != pg_query.SetOperation_SETOP_NONE {
		r.rewriteCTEs(sel, parent)
	}
	return nil
}

// rewriteCTEs handles the WITH list of a set operation, which hangs off the
// operation node rather than any branch.
func (r *rewriter) rewriteCTEs(sel *pg_query.SelectStmt, parent DateRange) {
	if sel.WithClause == nil {
		return
	}
	for _, c := range sel.WithClause.Ctes {
		cte := c.GetCommonTableExpr()
		if cte == nil || cte.Ctequery == nil {
			continue
		}
		r.rewriteSubquery(cte.Ctequery, parent)
	}
}

func (r *rewriter) viewCall(rv *pg_query.RangeVar, rng DateRange) *pg_query.Node {
	name := []string{rv.Relname}
	if rv.Schemaname != "" {
		name = []string{rv.Schemaname, rv.Relname}
	}
	args := []*pg_query.Node{
		sqlast.StringConst(r.req.User.UseInttID),
		sqlast.StringConst(r.req.User.UserID),
		sqlast.StringConst(r.req.CompanyID),
		sqlast.StringConst(rng.From),
		sqlast.StringConst(rng.To),
	}
	return sqlast.FunctionTable(name, args, rv.Alias)
}
