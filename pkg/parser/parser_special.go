package parser

import (
	"fmt"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/token"
)

// Special expression parsing: CASE, CAST, EXISTS, type names, parenthesized expressions, subqueries.
//
// Grammar:
//
//	case_expr     → CASE [expr] (WHEN expr THEN expr)+ [ELSE expr] END
//	cast_expr     → CAST "(" expr AS type_name ")"
//	exists_expr   → EXISTS "(" select_stmt ")"
//	paren_expr    → "(" expression ")" | "(" select_stmt ")"
//	type_name     → base ["(" literal ("," literal)* ")"] ["[" "]"]*
//	base          → DOUBLE PRECISION | CHARACTER [VARYING] | TIMESTAMP [(WITH|WITHOUT) TIME ZONE]
//	              | TIME [(WITH|WITHOUT) TIME ZONE] | name

// parseCaseExpr parses a CASE expression.
func (p *Parser) parseCaseExpr() *node {
	begin := p.token.Loc.Offset
	p.expect(token.CASE)

	// Simple CASE: CASE expr WHEN ...
	var argument *node
	if !p.check(token.WHEN) {
		argument = withAttr(core.AttrCaseArgument, p.parseExpression())
	}

	var clauses []*node
	for p.check(token.WHEN) {
		clauseBegin := p.token.Loc.Offset
		p.nextToken()
		when := withAttr(core.AttrCaseClauseWhen, p.parseExpression())
		p.expect(token.THEN)
		then := withAttr(core.AttrCaseClauseThen, p.parseExpression())
		clauses = append(clauses, p.object(core.NodeCaseClause, p.locFrom(clauseBegin), when, then))
	}
	if len(clauses) == 0 {
		p.expect(token.WHEN)
	}

	var otherwise *node
	if p.match(token.ELSE) {
		otherwise = withAttr(core.AttrCaseDefault, p.parseExpression())
	}
	p.expect(token.END)
	return p.object(core.NodeCase, p.locFrom(begin),
		argument,
		p.array(core.AttrCaseClauses, core.Location{}, clauses),
		otherwise,
	)
}

// parseCastExpr parses a CAST expression.
func (p *Parser) parseCastExpr() *node {
	begin := p.token.Loc.Offset
	p.expect(token.CAST)
	p.expect(token.LPAREN)
	value := withAttr(core.AttrTypecastValue, p.parseExpression())
	p.expect(token.AS)
	typ := withAttr(core.AttrTypecastType, p.parseTypeName())
	p.expect(token.RPAREN)
	return p.object(core.NodeTypecast, p.locFrom(begin), value, typ)
}

// parseConstTypecast parses typed literals such as DATE '1998-12-01'.
func (p *Parser) parseConstTypecast() *node {
	begin := p.token.Loc.Offset
	base := &node{typ: core.NodeStringRef, attr: core.AttrTypeNameBase, loc: p.token.Loc}
	p.nextToken()
	typ := p.object(core.NodeTypeName, base.loc, base)
	value := p.literal(core.NodeLiteralString, 0)
	return p.object(core.NodeTypecast, p.locFrom(begin),
		withAttr(core.AttrTypecastValue, value),
		withAttr(core.AttrTypecastType, typ),
	)
}

// parseTypeName parses a type name with optional modifiers.
func (p *Parser) parseTypeName() *node {
	begin := p.token.Loc.Offset
	switch {
	case p.match(token.DOUBLE):
		p.match(token.PRECISION)
	case p.match(token.CHARACTER):
		p.match(token.VARYING)
	case p.checkAny(token.TIMESTAMP, token.TIME):
		p.nextToken()
		if p.check(token.LPAREN) {
			break
		}
		p.parseTimeZone()
	case p.isColLabel():
		p.nextToken()
		for p.match(token.DOT) {
			if !p.isColLabel() {
				break
			}
			p.nextToken()
		}
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "type name"))
		return nil
	}
	base := &node{typ: core.NodeStringRef, attr: core.AttrTypeNameBase, loc: p.locFrom(begin)}

	var modifiers *node
	if p.check(token.LPAREN) {
		modBegin := p.token.Loc.Offset
		p.nextToken()
		var items []*node
		for {
			if item := p.parsePrimary(); item != nil {
				items = append(items, item)
			}
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN)
		modifiers = p.array(core.AttrTypeNameModifiers, p.locFrom(modBegin), items)
		if p.checkAny(token.WITH_LA, token.WITHOUT) {
			p.parseTimeZone()
		}
	}
	for p.check(token.LBRACKET) {
		p.nextToken()
		p.match(token.INTEGER)
		p.expect(token.RBRACKET)
	}
	return p.object(core.NodeTypeName, p.locFrom(begin), base, modifiers)
}

func (p *Parser) parseTimeZone() {
	if p.match(token.WITH_LA) || p.match(token.WITHOUT) {
		p.expect(token.TIME)
		p.expect(token.ZONE)
	}
}

// parseParenExpr parses a parenthesized expression or a subquery.
func (p *Parser) parseParenExpr() *node {
	begin := p.token.Loc.Offset
	p.expect(token.LPAREN)

	if p.checkAny(token.SELECT, token.WITH) {
		stmt := withAttr(core.AttrSubqueryStatement, p.parseSelectStmt())
		p.expect(token.RPAREN)
		return p.object(core.NodeSubqueryExpr, p.locFrom(begin), stmt)
	}

	expr := p.parseExpression()
	p.expect(token.RPAREN)
	return expr
}

// parseExistsExpr parses an EXISTS expression.
func (p *Parser) parseExistsExpr() *node {
	begin := p.token.Loc.Offset
	p.expect(token.EXISTS)
	p.expect(token.LPAREN)
	stmt := withAttr(core.AttrExistsStatement, p.parseSelectStmt())
	p.expect(token.RPAREN)
	return p.object(core.NodeExistsExpr, p.locFrom(begin), stmt)
}
