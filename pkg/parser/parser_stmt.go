package parser

import (
	"fmt"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/token"
)

// Statement parsing: WITH clause, CTEs, SELECT body, SELECT list, ORDER BY.
//
// Grammar:
//
//	cte_list      → cte ("," cte)*
//	cte           → name ["(" name_list ")"] AS "(" select_stmt ")"
//	select_list   → select_item ("," select_item)*
//	select_item   → "*" | expr [[AS] label]
//	order_list    → order_item ("," order_item)*
//	order_item    → expr [ASC|DESC] [NULLS FIRST|LAST]

// parseScript parses statements until EOF.
func (p *Parser) parseScript() {
	for {
		// Skip empty statements
		for p.match(token.SEMICOLON) {
			continue
		}
		p.panicking = false
		if p.check(token.EOF) {
			// A statement may still start here
			p.checkAny(statementStart...)
			return
		}
		p.parseStatement()
		if !p.check(token.SEMICOLON) && !p.check(token.EOF) {
			p.addError(fmt.Sprintf(ErrTrailingInput, p.describe(p.token)))
			p.synchronize()
		}
		if p.check(token.EOF) {
			return
		}
	}
}

var statementStart = []token.TokenType{token.SELECT, token.WITH, token.LPAREN, token.CREATE}

// parseStatement parses and emits one statement.
func (p *Parser) parseStatement() {
	p.checkAny(statementStart...)
	switch {
	case p.checkAny(token.SELECT, token.WITH, token.LPAREN):
		p.emitStatement(core.StatementSelect, p.parseSelectStmt())
	case p.check(token.CREATE):
		typ, root := p.parseCreateStmt()
		p.emitStatement(typ, root)
	default:
		p.addError(fmt.Sprintf(ErrExpectedStatement, p.describe(p.token)))
		p.synchronize()
	}
}

// parseSelectStmt parses [WITH ...] select_body.
func (p *Parser) parseSelectStmt() *node {
	begin := p.token.Loc.Offset
	var ctes, recursive *node
	if p.check(token.WITH) {
		withLoc := p.token.Loc
		p.nextToken()
		if p.check(token.RECURSIVE) {
			recursive = boolNode(core.AttrSelectWithRecursive, p.token.Loc)
			p.nextToken()
		}
		ctes = p.parseCTEList(withLoc.Offset)
	}

	stmt := p.parseSelectBody()
	if stmt == nil {
		return nil
	}
	if ctes != nil || recursive != nil {
		stmt.children = append(stmt.children, ctes, recursive)
		stmt = p.object(core.NodeSelect, p.locFrom(begin), stmt.children...)
	}
	return stmt
}

func (p *Parser) parseCTEList(begin uint32) *node {
	var items []*node
	for {
		if cte := p.parseCTE(); cte != nil {
			items = append(items, cte)
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	return p.array(core.AttrSelectWithCTEs, p.locFrom(begin), items)
}

// parseCTE parses a single CTE.
func (p *Parser) parseCTE() *node {
	begin := p.token.Loc.Offset
	name := p.parseName(core.AttrCTEName)
	if name == nil {
		return nil
	}
	var columns *node
	if p.check(token.LPAREN) {
		columns = p.parseNameList(core.AttrCTEColumns)
	}
	p.expect(token.AS)
	var stmt *node
	if p.expect(token.LPAREN) {
		stmt = withAttr(core.AttrCTEStatement, p.parseSelectStmt())
		p.expect(token.RPAREN)
	}
	return p.object(core.NodeCTE, p.locFrom(begin), name, columns, stmt)
}

// parseSelectBody parses select cores joined by set operations plus the
// trailing ORDER BY, LIMIT and OFFSET clauses.
func (p *Parser) parseSelectBody() *node {
	begin := p.token.Loc.Offset
	left := p.parseSelectCore()
	if left == nil {
		return nil
	}

	for p.checkAny(token.UNION, token.INTERSECT, token.EXCEPT) {
		opLoc := p.token.Loc
		var op uint32
		switch p.token.Type {
		case token.UNION:
			op = core.CombineUnion
		case token.INTERSECT:
			op = core.CombineIntersect
		default:
			op = core.CombineExcept
		}
		p.nextToken()
		var all *node
		if p.check(token.ALL) {
			all = boolNode(core.AttrSelectCombineModifier, p.token.Loc)
			p.nextToken()
		} else {
			p.match(token.DISTINCT) // optional
		}
		right := p.parseSelectCore()
		inputs := []*node{left}
		if right != nil {
			inputs = append(inputs, right)
		}
		left = p.object(core.NodeSelect, p.locFrom(begin),
			enumNode(core.NodeEnumCombineOperation, core.AttrSelectCombineOperation, opLoc, op),
			all,
			p.array(core.AttrSelectCombineInput, core.Location{}, inputs),
		)
		if right == nil {
			break
		}
	}

	var tail []*node
	if p.check(token.ORDER) {
		tail = append(tail, p.parseOrderBy(core.AttrSelectOrder))
	}
	if p.match(token.LIMIT) {
		if !p.match(token.ALL) {
			tail = append(tail, withAttr(core.AttrSelectLimit, p.parseExpression()))
		}
	}
	if p.match(token.OFFSET) {
		tail = append(tail, withAttr(core.AttrSelectOffset, p.parseExpression()))
		if !p.match(token.ROW) {
			p.match(token.ROWS)
		}
	}
	if len(tail) == 0 {
		return left
	}
	return p.object(core.NodeSelect, p.locFrom(begin), append(left.children, tail...)...)
}

// parseSelectCore parses a single SELECT clause or a parenthesized select.
func (p *Parser) parseSelectCore() *node {
	begin := p.token.Loc.Offset
	if p.check(token.LPAREN) {
		p.nextToken()
		stmt := p.parseSelectStmt()
		p.expect(token.RPAREN)
		return stmt
	}
	if !p.expect(token.SELECT) {
		return nil
	}

	var attrs []*node
	switch {
	case p.check(token.DISTINCT):
		loc := p.token.Loc
		p.nextToken()
		if p.match(token.ON) {
			p.expect(token.LPAREN)
			attrs = append(attrs, p.parseExpressionList(core.AttrSelectDistinct, core.Location{}))
			p.expect(token.RPAREN)
		} else {
			attrs = append(attrs, boolNode(core.AttrSelectDistinct, loc))
		}
	case p.match(token.ALL):
	}

	attrs = append(attrs, p.parseSelectList())

	if p.match(token.FROM) {
		attrs = append(attrs, p.parseFromList())
	}
	if p.match(token.WHERE) {
		attrs = append(attrs, withAttr(core.AttrSelectWhere, p.parseExpression()))
	}
	if p.check(token.GROUP) {
		p.nextToken()
		p.expect(token.BY)
		attrs = append(attrs, p.parseExpressionList(core.AttrSelectGroups, core.Location{}))
	}
	if p.match(token.HAVING) {
		attrs = append(attrs, withAttr(core.AttrSelectHaving, p.parseExpression()))
	}
	return p.object(core.NodeSelect, p.locFrom(begin), attrs...)
}

// parseSelectList parses the result targets of a select.
func (p *Parser) parseSelectList() *node {
	// Empty select lists are valid in some dialects, tolerate them
	if p.checkAny(token.FROM, token.EOF, token.SEMICOLON) {
		p.noteExpressionStart()
		p.note(token.STAR)
		return nil
	}
	var items []*node
	for {
		if item := p.parseSelectItem(); item != nil {
			items = append(items, item)
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	return p.array(core.AttrSelectTargets, core.Location{}, items)
}

// parseSelectItem parses a single result target.
func (p *Parser) parseSelectItem() *node {
	begin := p.token.Loc.Offset
	if p.check(token.STAR) {
		loc := p.token.Loc
		p.nextToken()
		return p.object(core.NodeResultTarget, loc, &node{typ: core.NodeStar, attr: core.AttrResultTargetStar, loc: loc})
	}
	value := p.parseExpression()
	if value == nil {
		return nil
	}
	var alias *node
	if p.match(token.AS) {
		if p.isColLabel() {
			alias = withAttr(core.AttrResultTargetName, p.nameNode())
		} else {
			p.addError(fmt.Sprintf(ErrExpectedName, p.describe(p.token)))
		}
	} else if p.isBareLabel() {
		alias = withAttr(core.AttrResultTargetName, p.nameNode())
	}
	return p.object(core.NodeResultTarget, p.locFrom(begin), withAttr(core.AttrResultTargetValue, value), alias)
}

// parseOrderBy parses ORDER BY order_list.
func (p *Parser) parseOrderBy(attr core.AttributeKey) *node {
	begin := p.token.Loc.Offset
	p.expect(token.ORDER)
	p.expect(token.BY)
	var items []*node
	for {
		if item := p.parseOrderItem(); item != nil {
			items = append(items, item)
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	return p.array(attr, p.locFrom(begin), items)
}

func (p *Parser) parseOrderItem() *node {
	begin := p.token.Loc.Offset
	value := p.parseExpression()
	if value == nil {
		return nil
	}
	var direction, nullRule *node
	switch {
	case p.check(token.ASC):
		direction = enumNode(core.NodeEnumOrderDirection, core.AttrOrderDirection, p.token.Loc, core.OrderAscending)
		p.nextToken()
	case p.check(token.DESC):
		direction = enumNode(core.NodeEnumOrderDirection, core.AttrOrderDirection, p.token.Loc, core.OrderDescending)
		p.nextToken()
	}
	if p.check(token.NULLS_LA) {
		loc := p.token.Loc
		p.nextToken()
		rule := core.OrderNullsFirst
		if p.check(token.LAST) {
			rule = core.OrderNullsLast
		} else {
			p.check(token.FIRST)
		}
		p.nextToken()
		nullRule = enumNode(core.NodeEnumOrderNullRule, core.AttrOrderNullRule, p.locFrom(loc.Offset), rule)
	}
	return p.object(core.NodeOrder, p.locFrom(begin), withAttr(core.AttrOrderValue, value), direction, nullRule)
}

// parseExpressionList parses expr ("," expr)* into an array node.
func (p *Parser) parseExpressionList(attr core.AttributeKey, loc core.Location) *node {
	var items []*node
	for {
		if e := p.parseExpression(); e != nil {
			items = append(items, e)
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	return p.array(attr, loc, items)
}
