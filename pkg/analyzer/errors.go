package analyzer

import (
	"github.com/leapstack-labs/dashql/pkg/core"
)

// ErrorType classifies an analyzer error.
type ErrorType uint8

// Analyzer error types.
const (
	ErrDuplicateTableAlias ErrorType = iota + 1
	ErrColumnRefAmbiguous
)

func (t ErrorType) String() string {
	switch t {
	case ErrDuplicateTableAlias:
		return "DUPLICATE_TABLE_ALIAS"
	case ErrColumnRefAmbiguous:
		return "COLUMN_REF_AMBIGUOUS"
	default:
		return "NONE"
	}
}

// Error is a semantic error found during analysis.
type Error struct {
	Type    ErrorType
	NodeID  uint32
	Loc     core.Location
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
