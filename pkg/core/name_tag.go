package core

import "strings"

// NameTags is a bitmask describing how a name is used.
type NameTags uint8

// Name tags.
const (
	NameTagNone     NameTags = 0
	NameTagKeyword  NameTags = 1 << 0
	NameTagDatabase NameTags = 1 << 1
	NameTagSchema   NameTags = 1 << 2
	NameTagTable    NameTags = 1 << 3
	NameTagAlias    NameTags = 1 << 4
	NameTagColumn   NameTags = 1 << 5
)

// AllNameTags lists the individual tags in ascending order.
var AllNameTags = []NameTags{
	NameTagKeyword,
	NameTagDatabase,
	NameTagSchema,
	NameTagTable,
	NameTagAlias,
	NameTagColumn,
}

// Has returns true if all bits of o are set.
func (t NameTags) Has(o NameTags) bool {
	return t&o == o && o != 0
}

// String returns the tags joined by "|".
func (t NameTags) String() string {
	if t == NameTagNone {
		return "NONE"
	}
	var parts []string
	for _, tag := range AllNameTags {
		if t&tag == 0 {
			continue
		}
		switch tag {
		case NameTagKeyword:
			parts = append(parts, "KEYWORD")
		case NameTagDatabase:
			parts = append(parts, "DATABASE_NAME")
		case NameTagSchema:
			parts = append(parts, "SCHEMA_NAME")
		case NameTagTable:
			parts = append(parts, "TABLE_NAME")
		case NameTagAlias:
			parts = append(parts, "TABLE_ALIAS")
		case NameTagColumn:
			parts = append(parts, "COLUMN_NAME")
		}
	}
	return strings.Join(parts, "|")
}
