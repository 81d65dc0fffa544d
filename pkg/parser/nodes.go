package parser

import (
	"sort"

	"github.com/leapstack-labs/dashql/pkg/core"
)

// node is the transient tree built while parsing one statement.
type node struct {
	typ      core.NodeType
	attr     core.AttributeKey
	loc      core.Location
	value    uint32
	children []*node

	flatBegin uint32
}

// withAttr sets the attribute key of n. Nil nodes stay nil.
func withAttr(attr core.AttributeKey, n *node) *node {
	if n != nil {
		n.attr = attr
	}
	return n
}

// object creates an object node. Nil attributes are dropped and the
// remaining children are ordered by attribute key.
func (p *Parser) object(typ core.NodeType, loc core.Location, attrs ...*node) *node {
	children := make([]*node, 0, len(attrs))
	for _, a := range attrs {
		if a != nil {
			children = append(children, a)
		}
	}
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].attr < children[j].attr
	})
	return &node{typ: typ, loc: loc, children: children}
}

// array creates an array node, or nil if there are no items.
func (p *Parser) array(attr core.AttributeKey, loc core.Location, items []*node) *node {
	if len(items) == 0 {
		return nil
	}
	if loc.Length == 0 {
		loc = items[0].loc
		for _, it := range items[1:] {
			loc = loc.Merge(it.loc)
		}
	}
	for _, it := range items {
		it.attr = core.AttrNone
	}
	return &node{typ: core.NodeArray, attr: attr, loc: loc, children: items}
}

func boolNode(attr core.AttributeKey, loc core.Location) *node {
	return &node{typ: core.NodeBool, attr: attr, loc: loc, value: 1}
}

func enumNode(typ core.NodeType, attr core.AttributeKey, loc core.Location, v uint32) *node {
	return &node{typ: typ, attr: attr, loc: loc, value: v}
}

// emitStatement flattens a statement tree into the node buffer.
func (p *Parser) emitStatement(typ core.StatementType, root *node) {
	if root == nil {
		return
	}
	begin := uint32(len(p.nodes))
	p.emitChildren(root)
	rootID := uint32(len(p.nodes))
	p.nodes = append(p.nodes, p.flatNode(root, core.NullID))
	p.adoptChildren(root, rootID)
	p.statements = append(p.statements, core.Statement{
		Type:       typ,
		Root:       rootID,
		NodesBegin: begin,
		NodeCount:  rootID - begin + 1,
	})
}

// emitChildren writes the subtrees below n so that the direct children of
// n end up contiguous right before n itself.
func (p *Parser) emitChildren(n *node) {
	for _, c := range n.children {
		p.emitChildren(c)
	}
	n.flatBegin = uint32(len(p.nodes))
	for _, c := range n.children {
		id := uint32(len(p.nodes))
		p.nodes = append(p.nodes, p.flatNode(c, core.NullID))
		p.adoptChildren(c, id)
	}
}

func (p *Parser) adoptChildren(n *node, id uint32) {
	for i := range n.children {
		p.nodes[n.flatBegin+uint32(i)].Parent = id
	}
}

func (p *Parser) flatNode(n *node, parent uint32) core.Node {
	out := core.Node{
		Type:   n.typ,
		Attr:   n.attr,
		Parent: parent,
		Loc:    n.loc,
	}
	if n.typ == core.NodeArray || n.typ.IsObject() {
		out.ChildrenBeginOrValue = n.flatBegin
		out.ChildrenCount = uint32(len(n.children))
	} else {
		out.ChildrenBeginOrValue = n.value
	}
	return out
}
