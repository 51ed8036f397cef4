package internal

import (
	"errors"
	"fmt"
)

var (
	ErrSegmentation        = errors.New("segmentation failure")
	ErrIncompleteStatement = errors.New("incomplete statement")
	ErrMalformedExpression = errors.New("malformed expression")
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrMalformedStatement  = errors.New("malformed statement")
	ErrUnbalancedBlock     = errors.New("unbalanced block")
	ErrUnterminatedBlock   = errors.New("unterminated block")
	ErrUnimplemented       = errors.New("not implemented")
	ErrUnknownOperator     = errors.New("unknown operator")
)

// SegmentationError is returned by the automaton when no transition exists for the current
// state and token type.
type SegmentationError struct {
	State    int
	Token    *Token
	Position int // index of Token inside the statement being scanned
}

func (err *SegmentationError) Error() string {
	return fmt.Sprintf("%v: no transition from state %d on %s (token %d of statement) near %s",
		ErrSegmentation, err.State, err.Token.Type, err.Position, err.Token.Where())
}

func (err *SegmentationError) Unwrap() error { return ErrSegmentation }

// UnsupportedConstructError marks a construct the parser accepts but which has no code
// generation.
type UnsupportedConstructError struct {
	Node Ast
}

func (err *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("%v: code generation for %s", ErrUnimplemented, err.Node)
}

func (err *UnsupportedConstructError) Unwrap() error { return ErrUnimplemented }

func makeSyntaxError(kind error, segment []*Token, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if len(segment) == 0 {
		return fmt.Errorf("%w: %s", kind, msg)
	}
	return fmt.Errorf("%w: %s, statement starting near %s", kind, msg, segment[0].Where())
}
