// Package parser turns scanned symbols into a flat abstract syntax tree.
//
// # Usage
//
//	scanned, _ := scanner.Scan("select a from b", 1)
//	parsed, err := parser.Parse(scanned)
//	stmt, node, ok := parsed.FindNodeAtOffset(8)
//
// # Grammar Overview
//
// The parser implements a recursive descent parser for a subset of SQL:
//
//	script        → statement (";" statement)*
//	statement     → select_stmt | create_stmt
//	select_stmt   → [WITH [RECURSIVE] cte_list] select_body
//	select_body   → select_core [(UNION|INTERSECT|EXCEPT) [ALL|DISTINCT] select_core]*
//	                [ORDER BY order_list] [LIMIT expr] [OFFSET expr]
//	select_core   → SELECT [DISTINCT [ON (expr_list)] | ALL] select_list
//	                [FROM from_list] [WHERE expr] [GROUP BY expr_list] [HAVING expr]
//	                | "(" select_stmt ")"
//	create_stmt   → CREATE [TEMP|TEMPORARY] TABLE [IF NOT EXISTS] qualified_name
//	                ("(" table_elements ")" | AS select_stmt)
//
// See each file for detailed grammar rules for that section.
//
// The output is post-order: the children of a node are contiguous and
// precede it, and a statement's root is its last node. Syntax errors are
// recorded and the parser synchronizes at the next ";", keeping the nodes
// built so far.
package parser

import (
	"fmt"
	"sort"
	"time"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/names"
	"github.com/leapstack-labs/dashql/pkg/scanner"
	"github.com/leapstack-labs/dashql/pkg/token"
)

// Parser parses SQL symbols into a flat AST.
type Parser struct {
	scanned *scanner.ScannedScript
	symbols []scanner.Symbol
	names   *names.Registry

	pos       int
	token     scanner.Symbol // current token
	peek      scanner.Symbol // lookahead token
	peek2     scanner.Symbol // second lookahead token
	prevEnd   uint32         // end offset of the last consumed token
	errors    []*ParseError
	panicking bool

	// Expected-symbol collection
	expectAt int
	expected map[token.TokenType]struct{}

	nodes      []core.Node
	statements []core.Statement
}

// NewParser creates a parser over the symbols of a scanned script.
func NewParser(scanned *scanner.ScannedScript) *Parser {
	p := &Parser{
		scanned:  scanned,
		symbols:  scanned.Symbols,
		names:    scanned.Names.Clone(),
		expectAt: -1,
	}
	p.reset(0)
	return p
}

// Parse parses all statements of a scanned script.
func Parse(scanned *scanner.ScannedScript) (*ParsedScript, error) {
	if scanned == nil {
		return nil, core.ErrScriptNotScanned
	}
	start := time.Now()
	p := NewParser(scanned)
	p.parseScript()
	return &ParsedScript{
		ExternalID: scanned.ExternalID,
		Scanned:    scanned,
		Nodes:      p.nodes,
		Statements: p.statements,
		Errors:     p.errors,
		Names:      p.names,
		Duration:   time.Since(start),
	}, nil
}

// Expected returns the symbol kinds the grammar accepts at symbolID.
// The script is parsed as if it ended right before that symbol.
func Expected(scanned *scanner.ScannedScript, symbolID int) []token.TokenType {
	if scanned == nil || symbolID < 0 || symbolID >= len(scanned.Symbols) {
		return nil
	}
	symbols := make([]scanner.Symbol, symbolID+1)
	copy(symbols, scanned.Symbols[:symbolID])
	eofAt := scanned.Symbols[symbolID].Loc.Offset
	symbols[symbolID] = scanner.Symbol{
		Token:  token.Token{Type: token.EOF, Loc: core.Loc(eofAt, 0)},
		NameID: core.NullID,
	}

	p := NewParser(scanned)
	p.symbols = symbols
	p.reset(0)
	p.expectAt = symbolID
	p.expected = make(map[token.TokenType]struct{})
	p.parseScript()

	out := make([]token.TokenType, 0, len(p.expected))
	for t := range p.expected {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ---------- Token Helpers ----------

func (p *Parser) symbolAt(i int) scanner.Symbol {
	if i >= len(p.symbols) {
		return p.symbols[len(p.symbols)-1]
	}
	return p.symbols[i]
}

func (p *Parser) reset(pos int) {
	p.pos = pos
	p.token = p.symbolAt(pos)
	p.peek = p.symbolAt(pos + 1)
	p.peek2 = p.symbolAt(pos + 2)
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	if p.token.Type == token.EOF {
		return
	}
	p.prevEnd = p.token.Loc.End()
	p.reset(p.pos + 1)
}

func (p *Parser) note(t token.TokenType) {
	if p.expected != nil && p.pos == p.expectAt && !p.panicking {
		p.expected[token.Base(t)] = struct{}{}
	}
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	p.note(t)
	return p.token.Type == t
}

// checkAny returns true if the current token is any of the given types.
func (p *Parser) checkAny(types ...token.TokenType) bool {
	found := false
	for _, t := range types {
		if p.check(t) {
			found = true
		}
	}
	return found
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), t))
	return false
}

func (p *Parser) describe(sym scanner.Symbol) string {
	if sym.Type == token.EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", p.scanned.ReadText(sym.Loc))
}

// addError adds a parse error at the current token. Errors after the first
// one of a statement are dropped until the parser synchronizes.
func (p *Parser) addError(msg string) {
	p.addErrorAt(p.token.Loc, msg)
	p.panicking = true
}

func (p *Parser) addErrorAt(loc core.Location, msg string) {
	if p.panicking {
		return
	}
	p.errors = append(p.errors, &ParseError{
		Loc:     loc,
		Pos:     p.scanned.Lines.Position(int(loc.Offset)),
		Message: msg,
	})
}

// synchronize skips to the next statement boundary.
func (p *Parser) synchronize() {
	for !p.check(token.SEMICOLON) && !p.check(token.EOF) {
		p.nextToken()
	}
}

// ---------- Name Helpers ----------

// isColID returns true if the current token can be used as a column,
// table or schema name.
func (p *Parser) isColID() bool {
	p.note(token.IDENT)
	switch token.CategoryOf(p.token.Type) {
	case token.Unreserved, token.ColumnName:
		return p.token.Type == token.IDENT || token.IsKeyword(p.token.Type)
	}
	return false
}

// isColLabel returns true if the current token can be used after AS.
func (p *Parser) isColLabel() bool {
	p.note(token.IDENT)
	return p.token.Type == token.IDENT || token.IsKeyword(p.token.Type)
}

// isBareLabel returns true if the current token can be used as an alias
// without AS.
func (p *Parser) isBareLabel() bool {
	p.note(token.IDENT)
	return p.token.Type == token.IDENT ||
		(token.IsKeyword(p.token.Type) && token.CategoryOf(p.token.Type) == token.Unreserved && !p.isClauseKeyword())
}

// isClauseKeyword returns true for unreserved keywords that still end a
// select list or table reference.
func (p *Parser) isClauseKeyword() bool {
	switch p.token.Type {
	case token.WINDOW, token.SET, token.RANGE, token.ROWS:
		return true
	}
	return false
}

// isJoinKeyword returns true if token starts a join.
func (p *Parser) isJoinKeyword() bool {
	return p.checkAny(token.JOIN, token.LEFT, token.RIGHT, token.INNER,
		token.FULL, token.CROSS, token.NATURAL)
}

// nameNode consumes the current token as a NAME node.
func (p *Parser) nameNode() *node {
	sym := p.token
	var id uint32
	if sym.Type == token.IDENT {
		id = sym.NameID
	} else {
		id = p.names.Register(names.Normalize(sym.Literal), sym.Loc, core.NameTagKeyword)
	}
	p.nextToken()
	return &node{typ: core.NodeName, loc: sym.Loc, value: id}
}

// parseName parses a column identifier into a NAME node.
func (p *Parser) parseName(attr core.AttributeKey) *node {
	if !p.isColID() {
		p.addError(fmt.Sprintf(ErrExpectedName, p.describe(p.token)))
		return nil
	}
	return withAttr(attr, p.nameNode())
}

// parseNameList parses "(" name ("," name)* ")".
func (p *Parser) parseNameList(attr core.AttributeKey) *node {
	begin := p.token.Loc.Offset
	if !p.expect(token.LPAREN) {
		return nil
	}
	var items []*node
	for {
		if n := p.parseName(core.AttrNone); n != nil {
			items = append(items, n)
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	return p.array(attr, p.locFrom(begin), items)
}

// parseQualifiedName parses name ("." name)* with trailing dot tolerance.
func (p *Parser) parseQualifiedName(attr core.AttributeKey) *node {
	begin := p.token.Loc.Offset
	first := p.parseName(core.AttrNone)
	if first == nil {
		return nil
	}
	items := []*node{first}
	for {
		if p.check(token.DOT_TRAILING) {
			items = append(items, p.trailingDot())
			break
		}
		if !p.match(token.DOT) {
			break
		}
		if !p.isColLabel() {
			p.addError(fmt.Sprintf(ErrExpectedName, p.describe(p.token)))
			break
		}
		items = append(items, p.nameNode())
	}
	return p.array(attr, p.locFrom(begin), items)
}

func (p *Parser) trailingDot() *node {
	loc := p.token.Loc
	p.nextToken()
	p.addErrorAt(loc, ErrTrailingDot)
	return &node{typ: core.NodeTrailingDot, loc: loc}
}

// locFrom returns the location from begin to the end of the last consumed token.
func (p *Parser) locFrom(begin uint32) core.Location {
	return core.LocRange(begin, max(begin, p.prevEnd))
}
