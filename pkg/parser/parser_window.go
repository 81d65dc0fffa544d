package parser

import (
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/token"
)

// Window specification parsing: OVER clauses, PARTITION BY, ORDER BY, frame specs.
//
// Grammar:
//
//	window_spec   → name | "(" [PARTITION BY expr_list] [ORDER BY order_list] [frame_spec] ")"
//	frame_spec    → (ROWS|RANGE) frame_extent
//	frame_extent  → BETWEEN frame_bound AND frame_bound | frame_bound
//	frame_bound   → UNBOUNDED PRECEDING | UNBOUNDED FOLLOWING | CURRENT ROW | expr PRECEDING | expr FOLLOWING
//
// Only the partition and order lists are kept in the AST.

// parseWindowSpec parses a window specification.
func (p *Parser) parseWindowSpec() (partition, order *node) {
	// Named window reference
	if p.isColID() {
		p.nextToken()
		return nil, nil
	}
	if !p.expect(token.LPAREN) {
		return nil, nil
	}
	if p.check(token.PARTITION) {
		p.nextToken()
		p.expect(token.BY)
		partition = p.parseExpressionList(core.AttrFunctionOverPartition, core.Location{})
	}
	if p.check(token.ORDER) {
		order = p.parseOrderBy(core.AttrFunctionOverOrder)
	}
	if p.checkAny(token.ROWS, token.RANGE) {
		p.parseFrameSpec()
	}
	p.expect(token.RPAREN)
	return partition, order
}

// parseFrameSpec parses a window frame specification.
func (p *Parser) parseFrameSpec() {
	p.nextToken()
	if p.match(token.BETWEEN) {
		p.parseFrameBound()
		p.expect(token.AND)
		p.parseFrameBound()
		return
	}
	p.parseFrameBound()
}

// parseFrameBound parses a frame bound.
func (p *Parser) parseFrameBound() {
	switch {
	case p.match(token.UNBOUNDED):
		if !p.match(token.PRECEDING) {
			p.expect(token.FOLLOWING)
		}
	case p.match(token.CURRENT):
		p.expect(token.ROW)
	default:
		// The bound sits above AND so BETWEEN n PRECEDING AND m FOLLOWING splits correctly
		p.parseExpressionWithPrecedence(precedenceAnd + 1)
		if !p.match(token.PRECEDING) {
			p.expect(token.FOLLOWING)
		}
	}
}
