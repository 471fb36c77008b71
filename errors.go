package searchtype

import (
	"errors"
	"fmt"
)

// Resolution faults. All of them are fatal for the sequence that raised them.
var (
	// ErrUnknownResourceType is returned when the resource type is not in the catalog.
	ErrUnknownResourceType = errors.New("unknown resource type")

	// ErrUnknownType is returned when a cast target or type token cannot be resolved.
	ErrUnknownType = errors.New("unknown type")

	// ErrUnsupportedExpression is returned for expression shapes the resolver
	// does not handle.
	ErrUnsupportedExpression = errors.New("unsupported expression")
)

// ExpressionError describes an unsupported expression construct.
// It unwraps to ErrUnsupportedExpression.
type ExpressionError struct {
	// Node is the kind of expression node, e.g. "binary" or "function".
	Node string

	// Detail names the operator, function or variable that was rejected.
	Detail string
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", ErrUnsupportedExpression, e.Node)
	}
	return fmt.Sprintf("%s: %s '%s'", ErrUnsupportedExpression, e.Node, e.Detail)
}

// Unwrap returns ErrUnsupportedExpression.
func (e *ExpressionError) Unwrap() error {
	return ErrUnsupportedExpression
}

// Unsupported builds an ExpressionError.
func Unsupported(node, detail string) error {
	return &ExpressionError{Node: node, Detail: detail}
}

// FaultKind classifies an error returned by the resolver for metrics and output.
func FaultKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownResourceType):
		return "unknown-resource-type"
	case errors.Is(err, ErrUnknownType):
		return "unknown-type"
	case errors.Is(err, ErrUnsupportedExpression):
		return "unsupported-expression"
	default:
		return "other"
	}
}
