package cursor

import (
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/parser"
)

// NameComponentType is the kind of a name path element.
type NameComponentType uint8

// Name component types.
const (
	NameComponentName NameComponentType = iota
	NameComponentStar
	NameComponentTrailingDot
)

// NameComponent is one element of a dotted name path.
type NameComponent struct {
	Type   NameComponentType
	Text   string
	NameID uint32
	Loc    core.Location
}

// ReadNamePath reads the elements of a name path array.
// Reading stops after a trailing dot. Unknown elements yield nil.
func ReadNamePath(parsed *parser.ParsedScript, arrayID uint32) []NameComponent {
	if arrayID == core.NullID || parsed.Nodes[arrayID].Type != core.NodeArray {
		return nil
	}
	begin, end := parsed.Nodes[arrayID].Children()
	out := make([]NameComponent, 0, end-begin)
	for i := begin; i < end; i++ {
		n := parsed.Nodes[i]
		switch n.Type {
		case core.NodeName:
			out = append(out, NameComponent{
				Type:   NameComponentName,
				Text:   parsed.Names.Text(n.ChildrenBeginOrValue),
				NameID: n.ChildrenBeginOrValue,
				Loc:    n.Loc,
			})
		case core.NodeStar:
			out = append(out, NameComponent{Type: NameComponentStar, NameID: core.NullID, Loc: n.Loc})
		case core.NodeTrailingDot:
			return append(out, NameComponent{Type: NameComponentTrailingDot, NameID: core.NullID, Loc: n.Loc})
		default:
			return nil
		}
	}
	return out
}

// FindNamePath returns the name path array enclosing a node.
func FindNamePath(parsed *parser.ParsedScript, nodeID uint32) (uint32, bool) {
	for id := nodeID; id != core.NullID; id = parsed.Nodes[id].Parent {
		n := parsed.Nodes[id]
		if n.Type != core.NodeArray {
			continue
		}
		switch n.Attr {
		case core.AttrColumnRefPath, core.AttrTableRefName, core.AttrCreateTableName:
			return id, true
		}
	}
	return core.NullID, false
}

// Names returns the leading names of a path. Stars and trailing dots end it.
func Names(path []NameComponent) []string {
	var out []string
	for _, c := range path {
		if c.Type != NameComponentName {
			break
		}
		out = append(out, c.Text)
	}
	return out
}
