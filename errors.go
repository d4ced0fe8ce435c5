package bvfold

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies the failures of an evaluation.
type ErrorKind int

const (
	// IllFormedInput: a symbolic leaf, an unsupported kind or an ITE whose
	// condition is not a boolean literal or fails to evaluate.
	IllFormedInput ErrorKind = iota + 1
	// DivisionError: the division primitive failed, e.g. on a zero divisor
	// when division by zero is not configured to return one.
	DivisionError
)

func (k ErrorKind) String() string {
	switch k {
	case IllFormedInput:
		return "ill-formed input"
	case DivisionError:
		return "division error"
	}
	return fmt.Sprintf("ErrorKind<%d>", int(k))
}

const maxErrorExprLen = 256

// EvalError aborts a whole evaluation. Expr is a (possibly truncated)
// rendering of the offending node.
type EvalError struct {
	Kind ErrorKind
	Expr string
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("consteval: %s: %v: %s", e.Kind, e.Err, e.Expr)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// Cause lets errors.Cause reach the underlying error.
func (e *EvalError) Cause() error {
	return e.Err
}

func describe(e ExprPtr) string {
	return e.builder().describe(e.Id())
}

func illFormed(e ExprPtr, format string, args ...interface{}) error {
	return &EvalError{Kind: IllFormedInput, Expr: describe(e), Err: errors.Errorf(format, args...)}
}

// illFormedCause reports e as ill-formed because evaluating one of its
// operands failed with err.
func illFormedCause(e ExprPtr, err error, msg string) error {
	return &EvalError{Kind: IllFormedInput, Expr: describe(e), Err: errors.Wrap(err, msg)}
}

func divisionError(e ExprPtr, err error) error {
	return &EvalError{Kind: DivisionError, Expr: describe(e), Err: errors.WithStack(err)}
}

// ErrorKindOf returns the kind of the EvalError wrapped in err, or zero.
func ErrorKindOf(err error) ErrorKind {
	var evalErr *EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Kind
	}
	return 0
}

func IsIllFormedInput(err error) bool {
	return ErrorKindOf(err) == IllFormedInput
}

func IsDivisionError(err error) bool {
	return ErrorKindOf(err) == DivisionError
}
