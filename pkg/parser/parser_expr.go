package parser

import (
	"fmt"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/token"
)

// Expression precedence parsing using a Pratt parser.
//
// Precedence levels:
//
//	precedenceOr         = 1  OR
//	precedenceAnd        = 2  AND
//	precedenceNot        = 3  NOT (prefix)
//	precedenceIs         = 4  IS [NOT] NULL|TRUE|FALSE|DISTINCT FROM
//	precedenceComparison = 5  (=, !=, <, >, <=, >=)
//	precedencePattern    = 6  ([NOT] BETWEEN, IN, LIKE, ILIKE, SIMILAR TO)
//	precedenceAddition   = 7  (+, -, ||)
//	precedenceMultiply   = 8  (*, /, %)
//	precedencePower      = 9  (^)
//	precedenceUnary      = 10 (-, +)
//	precedencePostfix    = 11 (::)
const (
	precedenceNone = iota
	precedenceOr
	precedenceAnd
	precedenceNot
	precedenceIs
	precedenceComparison
	precedencePattern
	precedenceAddition
	precedenceMultiply
	precedencePower
	precedenceUnary
	precedencePostfix
)

type infixOperator struct {
	token      token.TokenType
	precedence int
	op         core.ExprOperator
}

// infixOperators lists the binary operators in lookup order.
var infixOperators = []infixOperator{
	{token.OR, precedenceOr, core.OpOr},
	{token.AND, precedenceAnd, core.OpAnd},
	{token.IS, precedenceIs, core.OpNone},
	{token.EQ, precedenceComparison, core.OpEqual},
	{token.NE, precedenceComparison, core.OpNotEqual},
	{token.LT, precedenceComparison, core.OpLess},
	{token.GT, precedenceComparison, core.OpGreater},
	{token.LE, precedenceComparison, core.OpLessEqual},
	{token.GE, precedenceComparison, core.OpGreaterEqual},
	{token.NOT_LA, precedencePattern, core.OpNone},
	{token.BETWEEN, precedencePattern, core.OpBetween},
	{token.IN, precedencePattern, core.OpIn},
	{token.LIKE, precedencePattern, core.OpLike},
	{token.ILIKE, precedencePattern, core.OpILike},
	{token.SIMILAR, precedencePattern, core.OpSimilarTo},
	{token.PLUS, precedenceAddition, core.OpPlus},
	{token.MINUS, precedenceAddition, core.OpMinus},
	{token.DPIPE, precedenceAddition, core.OpConcat},
	{token.STAR, precedenceMultiply, core.OpMultiply},
	{token.SLASH, precedenceMultiply, core.OpDivide},
	{token.PERCENT, precedenceMultiply, core.OpModulus},
	{token.CARET, precedencePower, core.OpPower},
	{token.TYPECAST, precedencePostfix, core.OpNone},
}

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() *node {
	return p.parseExpressionWithPrecedence(precedenceNone + 1)
}

// parseExpressionWithPrecedence implements Pratt parsing.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) *node {
	begin := p.token.Loc.Offset
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	// Parse infix operators while their precedence is >= minPrecedence
	for {
		infix, ok := p.getInfixOperator()
		if !ok || infix.precedence < minPrecedence {
			break
		}
		left = p.parseInfixExpr(begin, left, infix)
		if left == nil {
			break
		}
	}
	return left
}

// parsePrefixExpr parses prefix expressions (unary operators and primary expressions).
func (p *Parser) parsePrefixExpr() *node {
	begin := p.token.Loc
	switch {
	case p.checkAny(token.NOT, token.NOT_LA):
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceNot)
		return p.nary(begin.Offset, begin, core.OpNot, expr)

	case p.check(token.MINUS):
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceUnary)
		return p.nary(begin.Offset, begin, core.OpNegate, expr)

	case p.check(token.PLUS):
		p.nextToken()
		return p.parseExpressionWithPrecedence(precedenceUnary)

	default:
		return p.parsePrimary()
	}
}

// noteExpressionStart records the symbols that can begin an expression
// without consuming anything.
func (p *Parser) noteExpressionStart() {
	for _, t := range []token.TokenType{
		token.IDENT, token.NOT, token.MINUS, token.PLUS,
		token.INTEGER, token.FLOAT, token.STRING, token.HEX, token.BINARY,
		token.TRUE, token.FALSE, token.NULL,
		token.LPAREN, token.CASE, token.CAST, token.EXISTS,
	} {
		p.note(t)
	}
}

// getInfixOperator returns the binary operator at the current token.
func (p *Parser) getInfixOperator() (infixOperator, bool) {
	var found infixOperator
	ok := false
	for _, infix := range infixOperators {
		if p.check(infix.token) && !ok {
			found, ok = infix, true
		}
	}
	return found, ok
}

// parseInfixExpr parses an infix expression given the left operand.
func (p *Parser) parseInfixExpr(begin uint32, left *node, infix infixOperator) *node {
	opLoc := p.token.Loc
	switch infix.token {
	case token.IS:
		return p.parseIsExpr(begin, left)
	case token.TYPECAST:
		p.nextToken()
		typ := p.parseTypeName()
		return p.object(core.NodeTypecast, p.locFrom(begin),
			withAttr(core.AttrTypecastValue, left),
			withAttr(core.AttrTypecastType, typ),
		)
	case token.NOT_LA:
		p.nextToken()
		return p.parsePatternExpr(begin, opLoc, left, true)
	case token.BETWEEN, token.IN, token.LIKE, token.ILIKE, token.SIMILAR:
		return p.parsePatternExpr(begin, opLoc, left, false)
	}

	p.nextToken()
	// Parse right operand with higher precedence (left-associative)
	right := p.parseExpressionWithPrecedence(infix.precedence + 1)
	if right == nil {
		return left
	}
	return p.nary(begin, opLoc, infix.op, left, right)
}

// parsePatternExpr parses [NOT] BETWEEN, IN, LIKE, ILIKE and SIMILAR TO.
func (p *Parser) parsePatternExpr(begin uint32, opLoc core.Location, left *node, negated bool) *node {
	pick := func(pos, neg core.ExprOperator) core.ExprOperator {
		if negated {
			return neg
		}
		return pos
	}
	switch {
	case p.match(token.BETWEEN):
		low := p.parseExpressionWithPrecedence(precedencePattern + 1)
		p.expect(token.AND)
		high := p.parseExpressionWithPrecedence(precedencePattern + 1)
		return p.nary(begin, p.locFrom(opLoc.Offset), pick(core.OpBetween, core.OpNotBetween), left, low, high)

	case p.match(token.IN):
		return p.nary(begin, opLoc, pick(core.OpIn, core.OpNotIn), left, p.parseInList())

	case p.match(token.LIKE):
		right := p.parseExpressionWithPrecedence(precedencePattern + 1)
		return p.nary(begin, opLoc, pick(core.OpLike, core.OpNotLike), left, right)

	case p.match(token.ILIKE):
		right := p.parseExpressionWithPrecedence(precedencePattern + 1)
		return p.nary(begin, opLoc, pick(core.OpILike, core.OpNotILike), left, right)

	case p.match(token.SIMILAR):
		p.expect(token.TO)
		right := p.parseExpressionWithPrecedence(precedencePattern + 1)
		return p.nary(begin, opLoc, pick(core.OpSimilarTo, core.OpNotSimilarTo), left, right)
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "BETWEEN, IN or LIKE"))
	return left
}

// parseInList parses "(" select_stmt ")" or "(" expr_list ")".
func (p *Parser) parseInList() *node {
	begin := p.token.Loc.Offset
	if !p.expect(token.LPAREN) {
		return nil
	}
	if p.checkAny(token.SELECT, token.WITH) {
		stmt := p.parseSelectStmt()
		p.expect(token.RPAREN)
		return p.object(core.NodeSubqueryExpr, p.locFrom(begin), withAttr(core.AttrSubqueryStatement, stmt))
	}
	list := p.parseExpressionList(core.AttrNone, core.Location{})
	p.expect(token.RPAREN)
	if list != nil {
		list.loc = p.locFrom(begin)
	}
	return list
}

// parseIsExpr parses IS [NOT] NULL|TRUE|FALSE|DISTINCT FROM expr.
func (p *Parser) parseIsExpr(begin uint32, left *node) *node {
	opLoc := p.token.Loc
	p.expect(token.IS)
	negated := p.match(token.NOT)

	switch {
	case p.match(token.NULL):
		op := core.OpIsNull
		if negated {
			op = core.OpIsNotNull
		}
		return p.nary(begin, p.locFrom(opLoc.Offset), op, left)
	case p.match(token.TRUE):
		op := core.OpIsTrue
		if negated {
			op = core.OpIsFalse
		}
		return p.nary(begin, p.locFrom(opLoc.Offset), op, left)
	case p.match(token.FALSE):
		op := core.OpIsFalse
		if negated {
			op = core.OpIsTrue
		}
		return p.nary(begin, p.locFrom(opLoc.Offset), op, left)
	case p.match(token.DISTINCT):
		p.expect(token.FROM)
		right := p.parseExpressionWithPrecedence(precedenceIs + 1)
		op := core.OpIsDistinctFrom
		if negated {
			op = core.OpIsNotDistinctFrom
		}
		return p.nary(begin, p.locFrom(opLoc.Offset), op, left, right)
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "NULL, TRUE, FALSE or DISTINCT"))
	return left
}

// nary builds an n-ary expression node. Nil arguments are skipped.
func (p *Parser) nary(begin uint32, opLoc core.Location, op core.ExprOperator, args ...*node) *node {
	var items []*node
	for _, a := range args {
		if a != nil {
			items = append(items, a)
		}
	}
	if len(items) == 0 {
		return nil
	}
	return p.object(core.NodeNaryExpr, p.locFrom(begin),
		enumNode(core.NodeEnumExprOperator, core.AttrExprOperator, opLoc, uint32(op)),
		p.array(core.AttrExprArgs, core.Location{}, items),
	)
}
