package core

import (
	"fmt"
	"math"
)

// NullID marks an absent u32 id (catalog database, schema, AST node, statement).
const NullID uint32 = math.MaxUint32

// ExternalObjectID identifies an object owned by a catalog entry.
// The external id of the owning script or descriptor pool lives in the high
// 32 bits, the entry-local object index in the low 32 bits.
type ExternalObjectID uint64

// NullExternalObjectID is the sentinel for unresolved references.
const NullExternalObjectID ExternalObjectID = math.MaxUint64

// NewExternalObjectID packs an external id and a local object index.
func NewExternalObjectID(externalID, index uint32) ExternalObjectID {
	return ExternalObjectID(uint64(externalID)<<32 | uint64(index))
}

// ExternalID returns the owning entry id.
func (id ExternalObjectID) ExternalID() uint32 {
	return uint32(id >> 32)
}

// Index returns the entry-local object index.
func (id ExternalObjectID) Index() uint32 {
	return uint32(id & math.MaxUint32)
}

// IsNull returns true for the null sentinel.
func (id ExternalObjectID) IsNull() bool {
	return id == NullExternalObjectID
}

func (id ExternalObjectID) String() string {
	if id.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%d.%d", id.ExternalID(), id.Index())
}
