package parser

import (
	"fmt"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/token"
)

// Primary expression parsing: literals, column refs, function calls.
//
// Grammar:
//
//	primary       → literal | column_ref | func_call | paren_expr | case_expr
//	              | cast_expr | exists_expr | const_typecast
//	literal       → INTEGER | FLOAT | STRING | HEX | BINARY | TRUE | FALSE | NULL
//	column_ref    → name ("." (label | "*"))* ["."]
//	func_call     → func_name "(" [DISTINCT] [expr_list | "*"] ")"
//	                [FILTER "(" WHERE expr ")"] [OVER window_spec]
//	const_typecast→ (DATE | TIME | TIMESTAMP | INTERVAL) STRING

// parsePrimary parses primary expressions.
func (p *Parser) parsePrimary() *node {
	loc := p.token.Loc
	switch {
	case p.check(token.INTEGER):
		return p.literal(core.NodeLiteralInteger, 0)
	case p.check(token.FLOAT):
		return p.literal(core.NodeLiteralFloat, 0)
	case p.check(token.STRING):
		return p.literal(core.NodeLiteralString, 0)
	case p.check(token.HEX):
		return p.literal(core.NodeLiteralHex, 0)
	case p.check(token.BINARY):
		return p.literal(core.NodeLiteralBinary, 0)
	case p.check(token.TRUE):
		return p.literal(core.NodeLiteralBoolean, 1)
	case p.check(token.FALSE):
		return p.literal(core.NodeLiteralBoolean, 0)
	case p.check(token.NULL):
		return p.literal(core.NodeLiteralNull, 0)

	case p.check(token.LPAREN):
		return p.parseParenExpr()
	case p.check(token.CASE):
		return p.parseCaseExpr()
	case p.check(token.CAST):
		return p.parseCastExpr()
	case p.check(token.EXISTS):
		return p.parseExistsExpr()
	}

	if p.checkAny(token.DATE, token.TIME, token.TIMESTAMP, token.INTERVAL) && p.checkPeek(token.STRING) {
		return p.parseConstTypecast()
	}

	// Type and function keywords such as LEFT or RIGHT are only names when called
	if token.CategoryOf(p.token.Type) == token.TypeFuncName && p.checkPeek(token.LPAREN) {
		name := p.array(core.AttrFunctionName, loc, []*node{p.nameNode()})
		return p.parseFuncCall(loc.Offset, name)
	}
	if p.isColID() {
		return p.parseIdentifierExpr()
	}

	p.addError(fmt.Sprintf(ErrExpectedExpr, p.describe(p.token)))
	return nil
}

func (p *Parser) literal(typ core.NodeType, value uint32) *node {
	n := &node{typ: typ, loc: p.token.Loc, value: value}
	p.nextToken()
	return n
}

// parseIdentifierExpr parses a column reference or a function call.
func (p *Parser) parseIdentifierExpr() *node {
	begin := p.token.Loc.Offset
	items := []*node{p.nameNode()}
	for {
		if p.check(token.DOT_TRAILING) {
			items = append(items, p.trailingDot())
			break
		}
		if !p.match(token.DOT) {
			break
		}
		if p.check(token.STAR) {
			items = append(items, &node{typ: core.NodeStar, loc: p.token.Loc})
			p.nextToken()
			break
		}
		if !p.isColLabel() {
			p.addError(fmt.Sprintf(ErrExpectedName, p.describe(p.token)))
			break
		}
		items = append(items, p.nameNode())
	}

	last := items[len(items)-1]
	if last.typ == core.NodeName && p.check(token.LPAREN) {
		return p.parseFuncCall(begin, p.array(core.AttrFunctionName, p.locFrom(begin), items))
	}
	return p.object(core.NodeColumnRef, p.locFrom(begin), p.array(core.AttrColumnRefPath, p.locFrom(begin), items))
}

// parseFuncCall parses the argument list and trailing clauses of a call.
func (p *Parser) parseFuncCall(begin uint32, name *node) *node {
	p.expect(token.LPAREN)
	var distinct, star, args *node
	switch {
	case p.check(token.STAR):
		star = boolNode(core.AttrFunctionStar, p.token.Loc)
		p.nextToken()
	case p.check(token.RPAREN):
	default:
		if p.check(token.DISTINCT) {
			distinct = boolNode(core.AttrFunctionDistinct, p.token.Loc)
			p.nextToken()
		} else {
			p.match(token.ALL)
		}
		args = p.parseExpressionList(core.AttrFunctionArgs, core.Location{})
		if p.check(token.ORDER) {
			// ordered-set arguments such as string_agg(x, ',' ORDER BY y)
			p.parseOrderBy(core.AttrNone)
		}
	}
	p.expect(token.RPAREN)

	var filter *node
	if p.match(token.FILTER) {
		p.expect(token.LPAREN)
		p.expect(token.WHERE)
		filter = withAttr(core.AttrFunctionFilter, p.parseExpression())
		p.expect(token.RPAREN)
	}

	var partition, order *node
	if p.match(token.OVER) {
		partition, order = p.parseWindowSpec()
	}
	return p.object(core.NodeFunctionExpr, p.locFrom(begin), name, args, distinct, star, filter, partition, order)
}
