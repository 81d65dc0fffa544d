package parser

import (
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/token"
)

// FROM clause parsing: table references, derived tables and joins.
//
// Grammar:
//
//	from_list     → table_ref ("," table_ref)*
//	table_ref     → table_primary (join)*
//	table_primary → qualified_name [[AS] alias]
//	              | [LATERAL] "(" select_stmt ")" [[AS] alias]
//	              | "(" table_ref ")"
//	alias         → name ["(" name_list ")"]
//	join          → [NATURAL] [INNER | LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER] | CROSS]
//	                JOIN table_primary [ON expr | USING "(" name_list ")"]

// parseFromList parses the comma separated table references.
func (p *Parser) parseFromList() *node {
	var items []*node
	for {
		if ref := p.parseTableRef(); ref != nil {
			items = append(items, ref)
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	return p.array(core.AttrSelectFrom, core.Location{}, items)
}

// parseTableRef parses a table primary followed by any number of joins.
func (p *Parser) parseTableRef() *node {
	begin := p.token.Loc.Offset
	left := p.parseTablePrimary()
	if left == nil {
		return nil
	}
	for p.isJoinKeyword() {
		joined := p.parseJoin(begin, left)
		if joined == nil {
			break
		}
		left = joined
	}
	return left
}

// parseTablePrimary parses a single table reference.
func (p *Parser) parseTablePrimary() *node {
	begin := p.token.Loc.Offset

	var lateral *node
	if p.check(token.LATERAL) {
		lateral = boolNode(core.AttrTableRefLateral, p.token.Loc)
		p.nextToken()
	}

	if p.check(token.LPAREN) {
		p.nextToken()
		if lateral == nil && !p.checkAny(token.SELECT, token.WITH, token.LPAREN) {
			// Parenthesized join tree
			inner := p.parseTableRef()
			p.expect(token.RPAREN)
			return inner
		}
		stmt := p.parseSelectStmt()
		p.expect(token.RPAREN)
		alias := p.parseAlias()
		return p.object(core.NodeTableRef, p.locFrom(begin), lateral, withAttr(core.AttrTableRefSelect, stmt), alias)
	}
	if lateral != nil {
		p.expect(token.LPAREN)
		return nil
	}

	name := p.parseQualifiedName(core.AttrTableRefName)
	if name == nil {
		return nil
	}
	alias := p.parseAlias()
	return p.object(core.NodeTableRef, p.locFrom(begin), name, alias)
}

// parseAlias parses an optional table alias with optional column names.
func (p *Parser) parseAlias() *node {
	var alias *node
	if p.match(token.AS) {
		alias = p.parseName(core.AttrTableRefAlias)
	} else if p.isBareLabel() {
		alias = withAttr(core.AttrTableRefAlias, p.nameNode())
	}
	if alias != nil && p.check(token.LPAREN) {
		// column aliases are accepted but not recorded
		p.parseNameList(core.AttrNone)
	}
	return alias
}

// parseJoin parses one join with left as its left input.
func (p *Parser) parseJoin(begin uint32, left *node) *node {
	joinLoc := p.token.Loc
	joinType := core.JoinInner
	natural := p.match(token.NATURAL)

	switch {
	case p.match(token.INNER):
	case p.match(token.LEFT):
		joinType = core.JoinLeft
		p.match(token.OUTER)
	case p.match(token.RIGHT):
		joinType = core.JoinRight
		p.match(token.OUTER)
	case p.match(token.FULL):
		joinType = core.JoinFull
		p.match(token.OUTER)
	case p.match(token.CROSS):
		joinType = core.JoinCross
	}
	if natural {
		joinType = core.JoinNatural
	}
	if !p.expect(token.JOIN) {
		return nil
	}

	right := p.parseTablePrimary()
	inputs := []*node{left}
	if right != nil {
		inputs = append(inputs, right)
	}

	var on, using *node
	switch {
	case p.match(token.ON):
		on = withAttr(core.AttrJoinedTableOn, p.parseExpression())
	case p.check(token.USING):
		p.nextToken()
		using = p.parseNameList(core.AttrJoinedTableUsing)
	}
	return p.object(core.NodeJoinedTable, p.locFrom(begin),
		enumNode(core.NodeEnumJoinType, core.AttrJoinedTableType, p.locFrom(joinLoc.Offset), uint32(joinType)),
		p.array(core.AttrJoinedTableInput, core.Location{}, inputs),
		on,
		using,
	)
}
