// Package answer renders LLM-authored answer templates against a result set.
// Every replacement field is evaluated by the expr package or the aggregate
// functions; a template with any failed field is replaced by an apology so a
// partial sentence never reaches the user.
package answer

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlekbai/aicfo/internal/expr"
	"github.com/atlekbai/aicfo/internal/expr/parser"
	"github.com/atlekbai/aicfo/internal/frame"
	"github.com/atlekbai/aicfo/internal/metrics"
)

// Locale selects marker and apology language.
type Locale string

const (
	LocaleKO Locale = "ko"
	LocaleEN Locale = "en"
)

// ParseLocale maps a config value to a Locale; anything but English is Korean.
func ParseLocale(s string) Locale {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "en") {
		return LocaleEN
	}
	return LocaleKO
}

var errorMarkers = []string{"[오류:", "[Error:"}

func (l Locale) marker(err error) string {
	if l == LocaleEN {
		return fmt.Sprintf("[Error: %s]", err)
	}
	return fmt.Sprintf("[오류: %s]", err)
}

func (l Locale) apology(zeroDivision bool) string {
	switch {
	case l == LocaleEN && zeroDivision:
		return "Sorry, the answer could not be generated because the calculation involved a division by zero. Please check the query results in the table below."
	case l == LocaleEN:
		return "Sorry, a problem occurred while composing the answer. Please check the query results in the table below."
	case zeroDivision:
		return "죄송합니다. 계산 과정에서 0으로 나누는 경우가 발생하여 답변을 생성할 수 없습니다. 아래 표에서 조회 결과를 확인해 주세요."
	}
	return "죄송합니다. 답변을 정리하는 중 문제가 발생했습니다. 아래 표에서 조회 결과를 확인해 주세요."
}

// Result is a rendered answer.
type Result struct {
	Text         string `json:"text"`
	Fallback     bool   `json:"fallback"`
	ZeroDivision bool   `json:"zero_division"`
	TraceID      string `json:"trace_id"`
}

// Renderer renders answer templates.
type Renderer struct {
	locale Locale
	logger *zap.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLocale sets the marker and apology language.
func WithLocale(l Locale) Option {
	return func(r *Renderer) { r.locale = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// NewRenderer creates a Renderer. The default locale is Korean.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{locale: LocaleKO, logger: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render evaluates every field of tpl against rs.
func (r *Renderer) Render(tpl string, rs *frame.ResultSet) *Result {
	res := &Result{TraceID: uuid.NewString()}
	log := r.logger.With(zap.String("trace_id", res.TraceID))

	segs, err := ParseTemplate(StripWrapper(tpl))
	if err != nil {
		log.Info("template rejected", zap.Error(err))
		return r.fallback(res, false)
	}

	ev := expr.New(rs, expr.WithLogger(r.logger))
	fc := &fieldContext{ev: ev, agg: NewAggregates(ev.Frame()), locale: r.locale}

	var b strings.Builder
	for _, seg := range segs {
		if seg.Field == nil {
			b.WriteString(seg.Literal)
			continue
		}
		s, err := fc.render(seg.Field)
		if err != nil {
			log.Debug("field failed", zap.String("expr", seg.Field.Expr), zap.Error(err))
			if errors.Is(err, expr.ErrZeroDivision) {
				res.ZeroDivision = true
			}
			s = r.locale.marker(err)
		}
		b.WriteString(s)
	}

	text := b.String()
	if hasErrorMarker(text) {
		zero := res.ZeroDivision || strings.Contains(text, "division by zero")
		log.Info("answer replaced by fallback", zap.Bool("zero_division", zero))
		return r.fallback(res, zero)
	}
	res.Text = text
	metrics.ObserveRender(metrics.OutcomeOK)
	return res
}

func (r *Renderer) fallback(res *Result, zeroDivision bool) *Result {
	res.Text = r.locale.apology(zeroDivision)
	res.Fallback = true
	res.ZeroDivision = zeroDivision
	if zeroDivision {
		metrics.ObserveRender(metrics.OutcomeZeroDivision)
	} else {
		metrics.ObserveRender(metrics.OutcomeFallback)
	}
	return res
}

func hasErrorMarker(s string) bool {
	for _, m := range errorMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// fieldContext evaluates fields of one template.
type fieldContext struct {
	ev     *expr.Evaluator
	agg    *Aggregates
	locale Locale
}

func (fc *fieldContext) render(f *Field) (string, error) {
	spec, err := fc.expandSpec(f.Spec)
	if err != nil {
		return "", err
	}
	if IsAggregateCall(f.Expr) {
		res, err := fc.agg.Eval(f.Expr)
		if err != nil {
			return "", err
		}
		return fc.format(res.Value, f.Conversion, spec, res.Func, res.Columns, res.listing)
	}
	v, err := fc.ev.Eval(f.Expr)
	if err != nil {
		return "", err
	}
	return fc.format(v, f.Conversion, spec, callName(f.Expr), referencedColumns(f.Expr, fc.ev.Frame()), listingNumeric)
}

// expandSpec substitutes nested fields inside a format spec.
func (fc *fieldContext) expandSpec(spec string) (string, error) {
	if !strings.Contains(spec, "{") {
		return spec, nil
	}
	segs, err := ParseTemplate(spec)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, seg := range segs {
		if seg.Field == nil {
			b.WriteString(seg.Literal)
			continue
		}
		v, err := fc.ev.Eval(seg.Field.Expr)
		if err != nil {
			return "", err
		}
		b.WriteString(frame.Str(v))
	}
	return b.String(), nil
}

func (fc *fieldContext) format(v any, conv rune, spec, funcName string, columns []string, listing listingKind) (string, error) {
	switch conv {
	case 's':
		v = frame.Str(v)
	case 'r':
		v = frame.Repr(v)
	case 'a':
		v = asciiRepr(v)
	}
	if spec != "" {
		return formatWithSpec(v, spec)
	}
	var items []any
	switch x := v.(type) {
	case *frame.Series:
		items = x.Values()
	case []any:
		items = x
	case frame.Tuple:
		items = x
	case frame.Set:
		items = x
	case *frame.Frame:
		return x.String(), nil
	default:
		return FormatNumber(v, "", funcName, columns)
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if frame.IsNull(it) {
			continue
		}
		if listing == listingRaw {
			parts = append(parts, frame.Str(it))
			continue
		}
		s, err := FormatNumber(it, "", funcName, columns)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return JoinListing(parts, fc.locale), nil
}

func asciiRepr(v any) string {
	var b strings.Builder
	for _, r := range frame.Repr(v) {
		switch {
		case r < 0x80:
			b.WriteRune(r)
		case r <= 0xff:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r <= 0xffff:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			fmt.Fprintf(&b, `\U%08x`, r)
		}
	}
	return b.String()
}

var (
	subscriptColumnRe = regexp.MustCompile(`df\[\s*(?:'([^']+)'|"([^"]+)")\s*\]`)
	identRe           = regexp.MustCompile(`(^|[^\w.'"])([A-Za-z_]\w*)`)
	attrColumnRe      = regexp.MustCompile(`df\.([A-Za-z_]\w*)`)
)

// referencedColumns lists the frame columns an expression mentions, in
// order of first appearance.
func referencedColumns(src string, f *frame.Frame) []string {
	type hit struct {
		pos  int
		name string
	}
	var hits []hit
	for _, m := range subscriptColumnRe.FindAllStringSubmatchIndex(src, -1) {
		if m[2] >= 0 {
			hits = append(hits, hit{m[2], src[m[2]:m[3]]})
		} else {
			hits = append(hits, hit{m[4], src[m[4]:m[5]]})
		}
	}
	for _, m := range attrColumnRe.FindAllStringSubmatchIndex(src, -1) {
		hits = append(hits, hit{m[2], src[m[2]:m[3]]})
	}
	for _, m := range identRe.FindAllStringSubmatchIndex(src, -1) {
		hits = append(hits, hit{m[4], src[m[4]:m[5]]})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	var cols []string
	seen := map[string]bool{}
	for _, h := range hits {
		if f.HasColumn(h.name) && !seen[h.name] {
			seen[h.name] = true
			cols = append(cols, h.name)
		}
	}
	return cols
}

// callName returns the outermost function or method name of a call
// expression, or "".
func callName(src string) string {
	tree, err := parser.Parse(src)
	if err != nil {
		return ""
	}
	call, ok := tree.(*parser.Call)
	if !ok {
		return ""
	}
	switch fn := call.Func.(type) {
	case *parser.Name:
		return fn.ID
	case *parser.Attribute:
		return fn.Attr
	}
	return ""
}
