package catalog

import (
	"fmt"

	"github.com/leapstack-labs/dashql/pkg/core"
)

// CollisionError reports two entries claiming the same external id or, for
// Table set, the same qualified table name at equal rank.
type CollisionError struct {
	ExternalID uint32
	Table      QualifiedTableName
	First      uint32
	Second     uint32
}

func (e *CollisionError) Error() string {
	if e.Table.Table != "" {
		return fmt.Sprintf("table %s is declared by entries %d and %d", e.Table, e.First, e.Second)
	}
	return fmt.Sprintf("%s: %d", core.ErrExternalIDCollision, e.ExternalID)
}

// Unwrap allows errors.Is(err, core.ErrExternalIDCollision).
func (e *CollisionError) Unwrap() error {
	return core.ErrExternalIDCollision
}
