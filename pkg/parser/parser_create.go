package parser

import (
	"fmt"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/token"
)

// CREATE TABLE parsing.
//
// Grammar:
//
//	create_stmt      → CREATE [TEMP|TEMPORARY] TABLE [IF NOT EXISTS] qualified_name
//	                   ("(" table_element ("," table_element)* ")" | AS select_stmt)
//	table_element    → column_def | table_constraint
//	column_def       → name type_name (column_constraint)*
//	column_constraint→ [CONSTRAINT name] (NOT NULL | NULL | PRIMARY KEY | UNIQUE
//	                   | DEFAULT expr | CHECK "(" expr ")" | REFERENCES qualified_name ["(" name_list ")"])
//	table_constraint → [CONSTRAINT name] (PRIMARY KEY "(" name_list ")" | UNIQUE "(" name_list ")"
//	                   | CHECK "(" expr ")" | FOREIGN KEY "(" name_list ")" REFERENCES qualified_name ["(" name_list ")"])

func (p *Parser) parseCreateStmt() (core.StatementType, *node) {
	begin := p.token.Loc.Offset
	p.expect(token.CREATE)

	var temp, ifNotExists *node
	if p.checkAny(token.TEMP, token.TEMPORARY) {
		temp = boolNode(core.AttrCreateTableTemp, p.token.Loc)
		p.nextToken()
	}
	if !p.expect(token.TABLE) {
		return core.StatementNone, nil
	}
	if p.check(token.IF) {
		loc := p.token.Loc
		p.nextToken()
		p.expect(token.NOT)
		p.expect(token.EXISTS)
		ifNotExists = boolNode(core.AttrCreateTableIfNotExists, p.locFrom(loc.Offset))
	}
	name := p.parseQualifiedName(core.AttrCreateTableName)

	if p.match(token.AS) {
		stmt := withAttr(core.AttrCreateAsStatement, p.parseSelectStmt())
		return core.StatementCreateTableAs, p.object(core.NodeCreateAs, p.locFrom(begin), name, stmt, temp, ifNotExists)
	}

	var elements []*node
	if p.expect(token.LPAREN) {
		for !p.check(token.RPAREN) && !p.check(token.EOF) {
			if el := p.parseTableElement(); el != nil {
				elements = append(elements, el)
			} else {
				break
			}
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN)
	}
	return core.StatementCreateTable, p.object(core.NodeCreate, p.locFrom(begin),
		name,
		p.array(core.AttrCreateTableElements, core.Location{}, elements),
		temp,
		ifNotExists,
	)
}

func (p *Parser) parseTableElement() *node {
	begin := p.token.Loc.Offset
	if p.match(token.CONSTRAINT) {
		p.parseName(core.AttrNone)
		return p.parseTableConstraint(begin)
	}
	if p.checkAny(token.PRIMARY, token.UNIQUE, token.CHECK, token.FOREIGN) {
		return p.parseTableConstraint(begin)
	}
	return p.parseColumnDef()
}

func (p *Parser) parseColumnDef() *node {
	begin := p.token.Loc.Offset
	name := p.parseName(core.AttrColumnDefName)
	if name == nil {
		return nil
	}
	typ := withAttr(core.AttrColumnDefType, p.parseTypeName())

	var options []*node
	for {
		option := p.parseColumnConstraint()
		if option == nil {
			break
		}
		options = append(options, option)
	}
	return p.object(core.NodeColumnDef, p.locFrom(begin), name, typ, p.array(core.AttrColumnDefOptions, core.Location{}, options))
}

func (p *Parser) parseColumnConstraint() *node {
	begin := p.token.Loc.Offset
	named := p.match(token.CONSTRAINT)
	if named {
		p.parseName(core.AttrNone)
	}
	constraint := func(typ uint32, value *node) *node {
		return p.object(core.NodeColumnConstraint, p.locFrom(begin),
			enumNode(core.NodeEnumConstraintType, core.AttrColumnConstraintType, p.locFrom(begin), typ),
			withAttr(core.AttrColumnConstraintValue, value),
		)
	}
	switch {
	case p.check(token.NOT):
		p.nextToken()
		p.expect(token.NULL)
		return constraint(core.ConstraintNotNull, nil)
	case p.match(token.NULL):
		return constraint(core.ConstraintNull, nil)
	case p.check(token.PRIMARY):
		p.nextToken()
		p.expect(token.KEY)
		return constraint(core.ConstraintPrimaryKey, nil)
	case p.match(token.UNIQUE):
		return constraint(core.ConstraintUnique, nil)
	case p.match(token.DEFAULT):
		return constraint(core.ConstraintDefault, p.parseExpressionWithPrecedence(precedenceComparison+1))
	case p.match(token.CHECK):
		p.expect(token.LPAREN)
		value := p.parseExpression()
		p.expect(token.RPAREN)
		return constraint(core.ConstraintCheck, value)
	case p.match(token.REFERENCES):
		target := p.parseQualifiedName(core.AttrNone)
		if p.check(token.LPAREN) {
			p.parseNameList(core.AttrNone)
		}
		return constraint(core.ConstraintReferences, target)
	}
	if named {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "constraint"))
	}
	return nil
}

func (p *Parser) parseTableConstraint(begin uint32) *node {
	kind := func(typ uint32) *node {
		return enumNode(core.NodeEnumConstraintType, core.AttrTableConstraintType, p.locFrom(begin), typ)
	}
	switch {
	case p.check(token.PRIMARY):
		p.nextToken()
		p.expect(token.KEY)
		typ := kind(core.ConstraintPrimaryKey)
		return p.object(core.NodeTableConstraint, p.locFrom(begin), typ, p.parseNameList(core.AttrTableConstraintColumns))
	case p.match(token.UNIQUE):
		typ := kind(core.ConstraintUnique)
		return p.object(core.NodeTableConstraint, p.locFrom(begin), typ, p.parseNameList(core.AttrTableConstraintColumns))
	case p.match(token.CHECK):
		typ := kind(core.ConstraintCheck)
		p.expect(token.LPAREN)
		p.parseExpression()
		p.expect(token.RPAREN)
		return p.object(core.NodeTableConstraint, p.locFrom(begin), typ)
	case p.check(token.FOREIGN):
		p.nextToken()
		p.expect(token.KEY)
		typ := kind(core.ConstraintForeignKey)
		columns := p.parseNameList(core.AttrTableConstraintColumns)
		if p.expect(token.REFERENCES) {
			p.parseQualifiedName(core.AttrNone)
			if p.check(token.LPAREN) {
				p.parseNameList(core.AttrNone)
			}
		}
		return p.object(core.NodeTableConstraint, p.locFrom(begin), typ, columns)
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "table constraint"))
	return nil
}
