package expr

import (
	"errors"
	"fmt"

	"github.com/atlekbai/aicfo/internal/frame"
)

// ErrorKind classifies evaluation failures.
type ErrorKind string

const (
	KindSyntax       ErrorKind = "syntax"
	KindName         ErrorKind = "name"
	KindAttribute    ErrorKind = "attribute"
	KindOperator     ErrorKind = "operator"
	KindCall         ErrorKind = "call"
	KindType         ErrorKind = "type"
	KindIndex        ErrorKind = "index"
	KindKey          ErrorKind = "key"
	KindValue        ErrorKind = "value"
	KindZeroDivision ErrorKind = "zero_division"
)

// EvalError is returned for every rejected or failed expression. Name holds
// the offending identifier, attribute or operator when there is one.
type EvalError struct {
	Kind ErrorKind
	Name string
	Msg  string
}

func (e *EvalError) Error() string { return e.Msg }

// Is matches on Kind, and on Name when the target sets one.
func (e *EvalError) Is(target error) bool {
	t, ok := target.(*EvalError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Name == "" || t.Name == e.Name)
}

// ErrZeroDivision matches any division or modulo by zero.
var ErrZeroDivision = &EvalError{Kind: KindZeroDivision, Msg: "division by zero"}

func newError(kind ErrorKind, name, format string, args ...any) *EvalError {
	return &EvalError{Kind: kind, Name: name, Msg: fmt.Sprintf(format, args...)}
}

func zeroDivision(msg string) *EvalError {
	return &EvalError{Kind: KindZeroDivision, Msg: msg}
}

// typeError wraps a failure from the frame package.
func typeError(err error) error {
	if err == nil {
		return nil
	}
	var ee *EvalError
	if errors.As(err, &ee) {
		return err
	}
	var ke *frame.KeyError
	if errors.As(err, &ke) {
		return &EvalError{Kind: KindKey, Name: frame.Str(ke.Key), Msg: err.Error()}
	}
	return &EvalError{Kind: KindType, Msg: err.Error()}
}
