package parser

// Node is the interface all AST nodes implement.
type Node interface {
	node() // marker method
	Position() int
}

// Constant is a literal: nil, bool, int64, float64 or string.
type Constant struct {
	Value any
	Pos   int
}

// Name is a bare identifier.
type Name struct {
	ID  string
	Pos int
}

// Attribute is value.attr.
type Attribute struct {
	Value Node
	Attr  string
	Pos   int
}

// Subscript is value[index]. Index is a *Slice for a[lo:hi:step] and a
// *Tuple for a[x, y].
type Subscript struct {
	Value Node
	Index Node
	Pos   int
}

// Slice is lower:upper:step; absent parts are nil.
type Slice struct {
	Lower, Upper, Step Node
	Pos                int
}

// Keyword is a name=value call argument.
type Keyword struct {
	Name  string
	Value Node
}

// Call is fn(args..., name=value...).
type Call struct {
	Func     Node
	Args     []Node
	Keywords []Keyword
	Pos      int
}

// BinOp is left op right for + - * / // % ** & | ^.
type BinOp struct {
	Op    string
	Left  Node
	Right Node
	Pos   int
}

// BoolOp is a chain of "and" or "or" operands.
type BoolOp struct {
	Op     string
	Values []Node
	Pos    int
}

// UnaryOp is op operand for + - ~ not.
type UnaryOp struct {
	Op      string
	Operand Node
	Pos     int
}

// Compare is a comparison chain: left op0 c0 op1 c1 ...
// Ops are "==", "!=", "<", "<=", ">", ">=", "in", "not in", "is", "is not".
type Compare struct {
	Left        Node
	Ops         []string
	Comparators []Node
	Pos         int
}

// IfExp is body if test else orElse.
type IfExp struct {
	Test, Body, OrElse Node
	Pos                int
}

// List is [a, b].
type List struct {
	Elts []Node
	Pos  int
}

// Tuple is (a, b) or a bare a, b.
type Tuple struct {
	Elts []Node
	Pos  int
}

// Set is {a, b}.
type Set struct {
	Elts []Node
	Pos  int
}

// Dict is {k: v}.
type Dict struct {
	Keys   []Node
	Values []Node
	Pos    int
}

// Comprehension is one "for target in iter if cond..." clause. Target is a
// *Name or a *Tuple of names.
type Comprehension struct {
	Target Node
	Iter   Node
	Ifs    []Node
}

// CompKind distinguishes the bracket a comprehension was written with.
type CompKind int

const (
	CompList CompKind = iota
	CompSet
	CompGenerator
)

// Comp is a list, set or generator comprehension.
type Comp struct {
	Kind       CompKind
	Elt        Node
	Generators []Comprehension
	Pos        int
}

// DictComp is {key: value for ...}.
type DictComp struct {
	Key, Value Node
	Generators []Comprehension
	Pos        int
}

func (*Constant) node()  {}
func (*Name) node()      {}
func (*Attribute) node() {}
func (*Subscript) node() {}
func (*Slice) node()     {}
func (*Call) node()      {}
func (*BinOp) node()     {}
func (*BoolOp) node()    {}
func (*UnaryOp) node()   {}
func (*Compare) node()   {}
func (*IfExp) node()     {}
func (*List) node()      {}
func (*Tuple) node()     {}
func (*Set) node()       {}
func (*Dict) node()      {}
func (*Comp) node()      {}
func (*DictComp) node()  {}

func (n *Constant) Position() int  { return n.Pos }
func (n *Name) Position() int      { return n.Pos }
func (n *Attribute) Position() int { return n.Pos }
func (n *Subscript) Position() int { return n.Pos }
func (n *Slice) Position() int     { return n.Pos }
func (n *Call) Position() int      { return n.Pos }
func (n *BinOp) Position() int     { return n.Pos }
func (n *BoolOp) Position() int    { return n.Pos }
func (n *UnaryOp) Position() int   { return n.Pos }
func (n *Compare) Position() int   { return n.Pos }
func (n *IfExp) Position() int     { return n.Pos }
func (n *List) Position() int      { return n.Pos }
func (n *Tuple) Position() int     { return n.Pos }
func (n *Set) Position() int       { return n.Pos }
func (n *Dict) Position() int      { return n.Pos }
func (n *Comp) Position() int      { return n.Pos }
func (n *DictComp) Position() int  { return n.Pos }
