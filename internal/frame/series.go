package frame

import (
	"fmt"
	"math"
	"math/bits"
	"sort"
	"strings"
)

// Series is a labeled column of cell values. Series are never mutated after
// construction; every operation returns a new one.
type Series struct {
	Name   string
	values []any
	index  []any
}

// NewSeries builds a Series. A nil index becomes 0..n-1.
func NewSeries(name string, values []any, index []any) *Series {
	if index == nil {
		index = RangeIndex(len(values))
	}
	return &Series{Name: name, values: values, index: index}
}

// RangeIndex returns the labels 0..n-1.
func RangeIndex(n int) []any {
	idx := make([]any, n)
	for i := range idx {
		idx[i] = int64(i)
	}
	return idx
}

func (s *Series) Len() int      { return len(s.values) }
func (s *Series) Values() []any { return s.values }
func (s *Series) Index() []any  { return s.index }

// At returns the value at position i.
func (s *Series) At(i int) any { return s.values[i] }

// ILoc returns the value at a position; negative positions count from the end.
func (s *Series) ILoc(i int) (any, error) {
	if i < 0 {
		i += len(s.values)
	}
	if i < 0 || i >= len(s.values) {
		return nil, fmt.Errorf("single positional indexer is out-of-bounds")
	}
	return s.values[i], nil
}

// Label returns the value stored under an index label.
func (s *Series) Label(label any) (any, error) {
	for i, l := range s.index {
		if Equal(l, label) {
			return s.values[i], nil
		}
	}
	return nil, &KeyError{Key: label}
}

// Take selects positions in order.
func (s *Series) Take(pos []int) *Series {
	values := make([]any, len(pos))
	index := make([]any, len(pos))
	for i, p := range pos {
		values[i] = s.values[p]
		index[i] = s.index[p]
	}
	return &Series{Name: s.Name, values: values, index: index}
}

// Slice selects a positional range.
func (s *Series) Slice(sl Slice) *Series {
	return s.Take(sl.Positions(len(s.values)))
}

// Filter keeps the positions where mask is True.
func (s *Series) Filter(mask *Series) (*Series, error) {
	pos, err := maskPositions(mask, len(s.values))
	if err != nil {
		return nil, err
	}
	return s.Take(pos), nil
}

func maskPositions(mask *Series, n int) ([]int, error) {
	if mask.Len() != n {
		return nil, fmt.Errorf("boolean index has wrong length: %d instead of %d", mask.Len(), n)
	}
	var pos []int
	for i, v := range mask.values {
		b, ok := v.(bool)
		if !ok && !IsNull(v) {
			return nil, fmt.Errorf("boolean index must contain only booleans, got %s", TypeName(v))
		}
		if b {
			pos = append(pos, i)
		}
	}
	return pos, nil
}

// Map applies fn to every value.
func (s *Series) Map(fn func(any) (any, error)) (*Series, error) {
	out := make([]any, len(s.values))
	for i, v := range s.values {
		r, err := fn(v)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return &Series{Name: s.Name, values: out, index: s.index}, nil
}

// Zip combines two equally long series position by position.
func Zip(a, b *Series, fn func(x, y any) (any, error)) (*Series, error) {
	if a.Len() != b.Len() {
		return nil, fmt.Errorf("can only compare identically-labeled Series objects (lengths %d and %d)", a.Len(), b.Len())
	}
	out := make([]any, a.Len())
	for i := range a.values {
		r, err := fn(a.values[i], b.values[i])
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	name := a.Name
	if a.Name != b.Name {
		name = ""
	}
	return &Series{Name: name, values: out, index: a.index}, nil
}

func (s *Series) nonNull() []any {
	out := make([]any, 0, len(s.values))
	for _, v := range s.values {
		if !IsNull(v) {
			out = append(out, v)
		}
	}
	return out
}

func (s *Series) numbers() ([]float64, error) {
	vals := s.nonNull()
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		f, ok := ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("could not convert %s to numeric", Repr(v))
		}
		out = append(out, f)
	}
	return out, nil
}

// --- Reductions ---

// Sum adds the non-null values. Integer columns stay integral; a column of
// strings concatenates.
func (s *Series) Sum() (any, error) {
	return SumValues(s.nonNull())
}

// SumValues adds numbers, keeping the result integral when every value is.
func SumValues(vals []any) (any, error) {
	if len(vals) > 0 {
		if _, ok := vals[0].(string); ok {
			var sb strings.Builder
			for _, v := range vals {
				str, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("unsupported operand type(s) for +: 'str' and '%s'", TypeName(v))
				}
				sb.WriteString(str)
			}
			return sb.String(), nil
		}
	}
	var isum int64
	var fsum float64
	integral := true
	for _, v := range vals {
		switch x := v.(type) {
		case int64:
			isum += x
		case bool:
			if x {
				isum++
			}
		case float64:
			integral = false
			fsum += x
		default:
			return nil, fmt.Errorf("unsupported operand type(s) for +: 'int' and '%s'", TypeName(v))
		}
	}
	if integral {
		return isum, nil
	}
	return fsum + float64(isum), nil
}

// Mean is the arithmetic mean of the non-null values, NaN when there are none.
func (s *Series) Mean() (any, error) {
	nums, err := s.numbers()
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return math.NaN(), nil
	}
	var sum float64
	for _, f := range nums {
		sum += f
	}
	return sum / float64(len(nums)), nil
}

// Median of the non-null values.
func (s *Series) Median() (any, error) {
	nums, err := s.numbers()
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return math.NaN(), nil
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 1 {
		return nums[mid], nil
	}
	return (nums[mid-1] + nums[mid]) / 2, nil
}

// Min returns the smallest non-null value.
func (s *Series) Min() (any, error) { return extreme(s.nonNull(), -1) }

// Max returns the largest non-null value.
func (s *Series) Max() (any, error) { return extreme(s.nonNull(), 1) }

func extreme(vals []any, want int) (any, error) {
	if len(vals) == 0 {
		return math.NaN(), nil
	}
	best := vals[0]
	for _, v := range vals[1:] {
		c, err := Compare(v, best)
		if err != nil {
			return nil, err
		}
		if c == want {
			best = v
		}
	}
	return best, nil
}

// Count is the number of non-null values.
func (s *Series) Count() int64 { return int64(len(s.nonNull())) }

// NUnique is the number of distinct non-null values.
func (s *Series) NUnique() int64 { return int64(len(Distinct(s.nonNull()))) }

// Unique returns the distinct non-null values in order of first appearance.
func (s *Series) Unique() []any { return Distinct(s.nonNull()) }

// Distinct removes duplicates, keeping first occurrences.
func Distinct(vals []any) []any {
	out := make([]any, 0, len(vals))
	for _, v := range vals {
		seen := false
		for _, o := range out {
			if Equal(o, v) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, v)
		}
	}
	return out
}

// ToList returns the values as a list.
func (s *Series) ToList() []any {
	out := make([]any, len(s.values))
	copy(out, s.values)
	return out
}

// Mode returns the most frequent value(s), sorted.
func (s *Series) Mode() *Series {
	modes := Modes(s.nonNull())
	sort.SliceStable(modes, func(i, j int) bool { return compareNullsLast(modes[i], modes[j]) < 0 })
	return NewSeries(s.Name, modes, nil)
}

// Modes returns every value sharing the highest frequency, in order of first
// appearance.
func Modes(vals []any) []any {
	distinct := Distinct(vals)
	counts := make([]int, len(distinct))
	best := 0
	for i, d := range distinct {
		for _, v := range vals {
			if Equal(d, v) {
				counts[i]++
			}
		}
		if counts[i] > best {
			best = counts[i]
		}
	}
	var out []any
	for i, d := range distinct {
		if counts[i] == best {
			out = append(out, d)
		}
	}
	return out
}

// Var is the sample variance with ddof degrees of freedom.
func (s *Series) Var(ddof int) (any, error) {
	nums, err := s.numbers()
	if err != nil {
		return nil, err
	}
	n := len(nums)
	if n-ddof <= 0 {
		return math.NaN(), nil
	}
	var mean float64
	for _, f := range nums {
		mean += f
	}
	mean /= float64(n)
	var ss float64
	for _, f := range nums {
		ss += (f - mean) * (f - mean)
	}
	return ss / float64(n-ddof), nil
}

// Std is the sample standard deviation with ddof degrees of freedom.
func (s *Series) Std(ddof int) (any, error) {
	v, err := s.Var(ddof)
	if err != nil {
		return nil, err
	}
	return math.Sqrt(v.(float64)), nil
}

// IdxMax returns the label of the largest value.
func (s *Series) IdxMax() (any, error) { return s.idxExtreme(1) }

// IdxMin returns the label of the smallest value.
func (s *Series) IdxMin() (any, error) { return s.idxExtreme(-1) }

func (s *Series) idxExtreme(want int) (any, error) {
	best := -1
	for i, v := range s.values {
		if IsNull(v) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		c, err := Compare(v, s.values[best])
		if err != nil {
			return nil, err
		}
		if c == want {
			best = i
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("attempt to get argmax of an empty sequence")
	}
	return s.index[best], nil
}

// --- Transformations ---

// Abs takes the absolute value of every number.
func (s *Series) Abs() (*Series, error) {
	return s.Map(func(v any) (any, error) {
		switch x := v.(type) {
		case nil:
			return nil, nil
		case int64:
			if x < 0 {
				return -x, nil
			}
			return x, nil
		case float64:
			return math.Abs(x), nil
		}
		return nil, fmt.Errorf("bad operand type for abs(): '%s'", TypeName(v))
	})
}

// Round rounds every number to the given decimals, halves to even.
func (s *Series) Round(decimals int) (*Series, error) {
	return s.Map(func(v any) (any, error) {
		switch x := v.(type) {
		case nil:
			return nil, nil
		case int64:
			return RoundInt(x, decimals)
		case float64:
			return RoundHalfEven(x, decimals), nil
		}
		return nil, fmt.Errorf("cannot round value of type %s", TypeName(v))
	})
}

// RoundHalfEven rounds f to decimals places with ties going to even.
func RoundHalfEven(f float64, decimals int) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	pow := math.Pow(10, float64(decimals))
	if pow == 0 {
		return math.Copysign(0, f)
	}
	scaled := f * pow
	if math.IsInf(pow, 0) || math.IsInf(scaled, 0) {
		return f
	}
	return math.RoundToEven(scaled) / pow
}

// RoundInt rounds n to a multiple of 10**-decimals with ties going to even.
// A non-negative decimals leaves n unchanged.
func RoundInt(n int64, decimals int) (int64, error) {
	if decimals >= 0 {
		return n, nil
	}
	if decimals < -19 {
		return 0, nil
	}
	// |n| < 2**64 < 10**20, so the unit fits in a uint64.
	unit := uint64(1)
	for i := 0; i < -decimals; i++ {
		unit *= 10
	}
	neg := n < 0
	abs := uint64(n)
	if neg {
		abs = -abs
	}
	q, r := abs/unit, abs%unit
	if rest := unit - r; r > rest || (r == rest && q%2 == 1) {
		q++
	}
	hi, lo := bits.Mul64(q, unit)
	limit := uint64(math.MaxInt64)
	if neg {
		limit++
	}
	if hi != 0 || lo > limit {
		return 0, fmt.Errorf("round(%d, %d) is out of integer range", n, decimals)
	}
	if neg {
		return int64(-lo), nil
	}
	return int64(lo), nil
}

// RoundFloatToInt rounds f half to even and converts it to an int64.
func RoundFloatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("cannot convert float %s to integer", FormatFloat(f))
	}
	r := math.RoundToEven(f)
	if r < -(1<<63) || r >= 1<<63 {
		return 0, fmt.Errorf("float %s is out of integer range", FormatFloat(f))
	}
	return int64(r), nil
}

// Head returns the first n values; a negative n drops the last -n.
func (s *Series) Head(n int) *Series {
	return s.Take(headPositions(len(s.values), n))
}

// Tail returns the last n values; a negative n drops the first -n.
func (s *Series) Tail(n int) *Series {
	return s.Take(tailPositions(len(s.values), n))
}

func headPositions(total, n int) []int {
	if n < 0 {
		n = max(total+n, 0)
	}
	n = min(n, total)
	pos := make([]int, n)
	for i := range pos {
		pos[i] = i
	}
	return pos
}

func tailPositions(total, n int) []int {
	if n < 0 {
		n = max(total+n, 0)
	}
	n = min(n, total)
	pos := make([]int, n)
	for i := range pos {
		pos[i] = total - n + i
	}
	return pos
}

// SortValues sorts by value, nulls last, keeping ties in order.
func (s *Series) SortValues(ascending bool) *Series {
	pos := make([]int, len(s.values))
	for i := range pos {
		pos[i] = i
	}
	sort.SliceStable(pos, func(i, j int) bool {
		a, b := s.values[pos[i]], s.values[pos[j]]
		if IsNull(a) || IsNull(b) {
			return compareNullsLast(a, b) < 0
		}
		c := compareNullsLast(a, b)
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return s.Take(pos)
}

// ValueCounts counts each distinct non-null value, most frequent first.
func (s *Series) ValueCounts() *Series {
	vals := s.nonNull()
	distinct := Distinct(vals)
	counts := make([]any, len(distinct))
	for i, d := range distinct {
		var n int64
		for _, v := range vals {
			if Equal(d, v) {
				n++
			}
		}
		counts[i] = n
	}
	return NewSeries("count", counts, distinct).SortValues(false)
}

// CumSum is the running total; nulls stay null.
func (s *Series) CumSum() (*Series, error) {
	var isum int64
	var fsum float64
	integral := true
	return s.Map(func(v any) (any, error) {
		switch x := v.(type) {
		case nil:
			return nil, nil
		case int64:
			isum += x
		case float64:
			if math.IsNaN(x) {
				return x, nil
			}
			integral = false
			fsum += x
		default:
			return nil, fmt.Errorf("cumsum is not supported for %s values", TypeName(v))
		}
		if integral {
			return isum, nil
		}
		return fsum + float64(isum), nil
	})
}

// IsIn marks values contained in set.
func (s *Series) IsIn(set []any) *Series {
	out, _ := s.Map(func(v any) (any, error) {
		for _, m := range set {
			if Equal(v, m) {
				return true, nil
			}
		}
		return false, nil
	})
	return out
}

// IsNA marks null values.
func (s *Series) IsNA() *Series {
	out, _ := s.Map(func(v any) (any, error) { return IsNull(v), nil })
	return out
}

// NotNA marks non-null values.
func (s *Series) NotNA() *Series {
	out, _ := s.Map(func(v any) (any, error) { return !IsNull(v), nil })
	return out
}

// FillNA replaces nulls with fill.
func (s *Series) FillNA(fill any) *Series {
	out, _ := s.Map(func(v any) (any, error) {
		if IsNull(v) {
			return fill, nil
		}
		return v, nil
	})
	return out
}

// DropNA removes nulls.
func (s *Series) DropNA() *Series {
	var pos []int
	for i, v := range s.values {
		if !IsNull(v) {
			pos = append(pos, i)
		}
	}
	return s.Take(pos)
}

// DropDuplicates keeps the first occurrence of every value.
func (s *Series) DropDuplicates() *Series {
	var pos []int
	for i, v := range s.values {
		dup := false
		for _, p := range pos {
			if Equal(s.values[p], v) {
				dup = true
				break
			}
		}
		if !dup {
			pos = append(pos, i)
		}
	}
	return s.Take(pos)
}

// Between marks values within [lo, hi]; inclusive is both, neither, left or right.
func (s *Series) Between(lo, hi any, inclusive string) (*Series, error) {
	return s.Map(func(v any) (any, error) {
		if IsNull(v) {
			return false, nil
		}
		cl, err := Compare(v, lo)
		if err != nil {
			return nil, err
		}
		ch, err := Compare(v, hi)
		if err != nil {
			return nil, err
		}
		switch inclusive {
		case "neither":
			return cl > 0 && ch < 0, nil
		case "left":
			return cl >= 0 && ch < 0, nil
		case "right":
			return cl > 0 && ch <= 0, nil
		}
		return cl >= 0 && ch <= 0, nil
	})
}

// AsType converts every value to int, float, str or bool.
func (s *Series) AsType(kind string) (*Series, error) {
	conv, err := Converter(kind)
	if err != nil {
		return nil, err
	}
	return s.Map(func(v any) (any, error) {
		if IsNull(v) && kind != "str" && kind != "string" {
			return v, nil
		}
		return conv(v)
	})
}

// Dtype reports the pandas dtype name of the values.
func (s *Series) Dtype() string {
	kind := ""
	for _, v := range s.values {
		var k string
		switch v.(type) {
		case nil:
			continue
		case int64:
			k = "int64"
		case float64:
			k = "float64"
		case bool:
			k = "bool"
		default:
			return "object"
		}
		switch {
		case kind == "":
			kind = k
		case kind != k && (kind == "int64" && k == "float64" || kind == "float64" && k == "int64"):
			kind = "float64"
		case kind != k:
			return "object"
		}
	}
	if kind == "" {
		return "object"
	}
	return kind
}

// String renders "label    value" lines.
func (s *Series) String() string {
	var sb strings.Builder
	for i, v := range s.values {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(Str(s.index[i]))
		sb.WriteString("    ")
		sb.WriteString(Str(v))
	}
	return sb.String()
}
