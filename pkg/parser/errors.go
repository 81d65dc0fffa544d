package parser

import (
	"fmt"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/token"
)

// ParseError represents a parsing error with position information.
type ParseError struct {
	Loc     core.Location
	Pos     token.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Common error messages
const (
	ErrUnexpectedToken   = "unexpected token %s, expected %s"
	ErrExpectedName      = "expected a name, found %s"
	ErrExpectedExpr      = "expected an expression, found %s"
	ErrExpectedStatement = "expected a statement, found %s"
	ErrTrailingDot       = "name has a trailing dot"
	ErrTrailingInput     = "unexpected %s after statement"
)
