package core

// NodeType is the type of a flat AST node.
type NodeType uint16

// Node types.
//
// Scalar nodes store their value in ChildrenBeginOrValue.
// Object and array nodes store the index of their first child.
const (
	NodeNone NodeType = iota
	NodeBool
	NodeUI32
	NodeStringRef
	NodeName
	NodeArray

	NodeLiteralNull
	NodeLiteralInteger
	NodeLiteralFloat
	NodeLiteralString
	NodeLiteralHex
	NodeLiteralBinary
	NodeLiteralBoolean

	NodeEnumExprOperator
	NodeEnumJoinType
	NodeEnumOrderDirection
	NodeEnumOrderNullRule
	NodeEnumCombineOperation
	NodeEnumConstraintType

	NodeSelect
	NodeResultTarget
	NodeTableRef
	NodeJoinedTable
	NodeColumnRef
	NodeNaryExpr
	NodeFunctionExpr
	NodeCase
	NodeCaseClause
	NodeTypecast
	NodeSubqueryExpr
	NodeExistsExpr
	NodeOrder
	NodeCTE
	NodeCreate
	NodeCreateAs
	NodeColumnDef
	NodeColumnConstraint
	NodeTableConstraint
	NodeTypeName
	NodeTrailingDot
	NodeStar
)

var nodeTypeNames = map[NodeType]string{
	NodeNone:                 "NONE",
	NodeBool:                 "BOOL",
	NodeUI32:                 "UI32",
	NodeStringRef:            "STRING_REF",
	NodeName:                 "NAME",
	NodeArray:                "ARRAY",
	NodeLiteralNull:          "LITERAL_NULL",
	NodeLiteralInteger:       "LITERAL_INTEGER",
	NodeLiteralFloat:         "LITERAL_FLOAT",
	NodeLiteralString:        "LITERAL_STRING",
	NodeLiteralHex:           "LITERAL_HEX",
	NodeLiteralBinary:        "LITERAL_BINARY",
	NodeLiteralBoolean:       "LITERAL_BOOLEAN",
	NodeEnumExprOperator:     "ENUM_SQL_EXPRESSION_OPERATOR",
	NodeEnumJoinType:         "ENUM_SQL_JOIN_TYPE",
	NodeEnumOrderDirection:   "ENUM_SQL_ORDER_DIRECTION",
	NodeEnumOrderNullRule:    "ENUM_SQL_ORDER_NULL_RULE",
	NodeEnumCombineOperation: "ENUM_SQL_COMBINE_OPERATION",
	NodeEnumConstraintType:   "ENUM_SQL_CONSTRAINT_TYPE",
	NodeSelect:               "OBJECT_SQL_SELECT",
	NodeResultTarget:         "OBJECT_SQL_RESULT_TARGET",
	NodeTableRef:             "OBJECT_SQL_TABLEREF",
	NodeJoinedTable:          "OBJECT_SQL_JOINED_TABLE",
	NodeColumnRef:            "OBJECT_SQL_COLUMN_REF",
	NodeNaryExpr:             "OBJECT_SQL_NARY_EXPRESSION",
	NodeFunctionExpr:         "OBJECT_SQL_FUNCTION_EXPRESSION",
	NodeCase:                 "OBJECT_SQL_CASE",
	NodeCaseClause:           "OBJECT_SQL_CASE_CLAUSE",
	NodeTypecast:             "OBJECT_SQL_TYPECAST_EXPRESSION",
	NodeSubqueryExpr:         "OBJECT_SQL_SELECT_EXPRESSION",
	NodeExistsExpr:           "OBJECT_SQL_EXISTS_EXPRESSION",
	NodeOrder:                "OBJECT_SQL_ORDER",
	NodeCTE:                  "OBJECT_SQL_CTE",
	NodeCreate:               "OBJECT_SQL_CREATE",
	NodeCreateAs:             "OBJECT_SQL_CREATE_AS",
	NodeColumnDef:            "OBJECT_SQL_COLUMN_DEF",
	NodeColumnConstraint:     "OBJECT_SQL_COLUMN_CONSTRAINT",
	NodeTableConstraint:      "OBJECT_SQL_TABLE_CONSTRAINT",
	NodeTypeName:             "OBJECT_SQL_TYPENAME",
	NodeTrailingDot:          "OBJECT_EXT_TRAILING_DOT",
	NodeStar:                 "OBJECT_SQL_STAR",
}

func (t NodeType) String() string {
	if name, ok := nodeTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsObject returns true for node types that own an attribute-keyed child list.
func (t NodeType) IsObject() bool {
	return t >= NodeSelect
}

// AttributeKey labels the role of a node within its parent.
type AttributeKey uint16

// Attribute keys.
const (
	AttrNone AttributeKey = iota

	AttrSelectWithCTEs
	AttrSelectWithRecursive
	AttrSelectDistinct
	AttrSelectTargets
	AttrSelectFrom
	AttrSelectWhere
	AttrSelectGroups
	AttrSelectHaving
	AttrSelectOrder
	AttrSelectLimit
	AttrSelectOffset
	AttrSelectCombineOperation
	AttrSelectCombineModifier
	AttrSelectCombineInput

	AttrResultTargetValue
	AttrResultTargetName
	AttrResultTargetStar

	AttrTableRefName
	AttrTableRefAlias
	AttrTableRefSelect
	AttrTableRefLateral

	AttrJoinedTableType
	AttrJoinedTableInput
	AttrJoinedTableOn
	AttrJoinedTableUsing

	AttrColumnRefPath

	AttrExprOperator
	AttrExprArgs
	AttrFunctionName
	AttrFunctionArgs
	AttrFunctionDistinct
	AttrFunctionStar
	AttrFunctionFilter
	AttrFunctionOverPartition
	AttrFunctionOverOrder
	AttrCaseArgument
	AttrCaseClauses
	AttrCaseDefault
	AttrCaseClauseWhen
	AttrCaseClauseThen
	AttrTypecastValue
	AttrTypecastType
	AttrSubqueryStatement
	AttrExistsStatement

	AttrOrderValue
	AttrOrderDirection
	AttrOrderNullRule

	AttrCTEName
	AttrCTEColumns
	AttrCTEStatement

	AttrCreateTableName
	AttrCreateTableElements
	AttrCreateTableTemp
	AttrCreateTableIfNotExists
	AttrCreateAsStatement

	AttrColumnDefName
	AttrColumnDefType
	AttrColumnDefOptions
	AttrColumnConstraintType
	AttrColumnConstraintValue

	AttrTableConstraintType
	AttrTableConstraintColumns

	AttrTypeNameBase
	AttrTypeNameModifiers
)

var attributeKeyNames = map[AttributeKey]string{
	AttrNone:                   "NONE",
	AttrSelectWithCTEs:         "SQL_SELECT_WITH_CTES",
	AttrSelectWithRecursive:    "SQL_SELECT_WITH_RECURSIVE",
	AttrSelectDistinct:         "SQL_SELECT_DISTINCT",
	AttrSelectTargets:          "SQL_SELECT_TARGETS",
	AttrSelectFrom:             "SQL_SELECT_FROM",
	AttrSelectWhere:            "SQL_SELECT_WHERE",
	AttrSelectGroups:           "SQL_SELECT_GROUPS",
	AttrSelectHaving:           "SQL_SELECT_HAVING",
	AttrSelectOrder:            "SQL_SELECT_ORDER",
	AttrSelectLimit:            "SQL_SELECT_LIMIT",
	AttrSelectOffset:           "SQL_SELECT_OFFSET",
	AttrSelectCombineOperation: "SQL_SELECT_COMBINE_OPERATION",
	AttrSelectCombineModifier:  "SQL_SELECT_COMBINE_MODIFIER",
	AttrSelectCombineInput:     "SQL_SELECT_COMBINE_INPUT",
	AttrResultTargetValue:      "SQL_RESULT_TARGET_VALUE",
	AttrResultTargetName:       "SQL_RESULT_TARGET_NAME",
	AttrResultTargetStar:       "SQL_RESULT_TARGET_STAR",
	AttrTableRefName:           "SQL_TABLEREF_NAME",
	AttrTableRefAlias:          "SQL_TABLEREF_ALIAS",
	AttrTableRefSelect:         "SQL_TABLEREF_TABLE",
	AttrTableRefLateral:        "SQL_TABLEREF_LATERAL",
	AttrJoinedTableType:        "SQL_JOINED_TABLE_TYPE",
	AttrJoinedTableInput:       "SQL_JOINED_TABLE_INPUT",
	AttrJoinedTableOn:          "SQL_JOINED_TABLE_QUALIFIER",
	AttrJoinedTableUsing:       "SQL_JOINED_TABLE_USING",
	AttrColumnRefPath:          "SQL_COLUMN_REF_PATH",
	AttrExprOperator:           "SQL_EXPRESSION_OPERATOR",
	AttrExprArgs:               "SQL_EXPRESSION_ARGS",
	AttrFunctionName:           "SQL_FUNCTION_NAME",
	AttrFunctionArgs:           "SQL_FUNCTION_ARGUMENTS",
	AttrFunctionDistinct:       "SQL_FUNCTION_DISTINCT",
	AttrFunctionStar:           "SQL_FUNCTION_STAR",
	AttrFunctionFilter:         "SQL_FUNCTION_FILTER",
	AttrFunctionOverPartition:  "SQL_FUNCTION_OVER_PARTITION",
	AttrFunctionOverOrder:      "SQL_FUNCTION_OVER_ORDER",
	AttrCaseArgument:           "SQL_CASE_ARGUMENT",
	AttrCaseClauses:            "SQL_CASE_CLAUSES",
	AttrCaseDefault:            "SQL_CASE_DEFAULT",
	AttrCaseClauseWhen:         "SQL_CASE_CLAUSE_WHEN",
	AttrCaseClauseThen:         "SQL_CASE_CLAUSE_THEN",
	AttrTypecastValue:          "SQL_TYPECAST_VALUE",
	AttrTypecastType:           "SQL_TYPECAST_TYPE",
	AttrSubqueryStatement:      "SQL_SELECT_EXPRESSION_STATEMENT",
	AttrExistsStatement:        "SQL_EXISTS_EXPRESSION_STATEMENT",
	AttrOrderValue:             "SQL_ORDER_VALUE",
	AttrOrderDirection:         "SQL_ORDER_DIRECTION",
	AttrOrderNullRule:          "SQL_ORDER_NULLRULE",
	AttrCTEName:                "SQL_CTE_NAME",
	AttrCTEColumns:             "SQL_CTE_COLUMNS",
	AttrCTEStatement:           "SQL_CTE_STATEMENT",
	AttrCreateTableName:        "SQL_CREATE_TABLE_NAME",
	AttrCreateTableElements:    "SQL_CREATE_TABLE_ELEMENTS",
	AttrCreateTableTemp:        "SQL_CREATE_TABLE_TEMP",
	AttrCreateTableIfNotExists: "SQL_CREATE_TABLE_IF_NOT_EXISTS",
	AttrCreateAsStatement:      "SQL_CREATE_AS_STATEMENT",
	AttrColumnDefName:          "SQL_COLUMN_DEF_NAME",
	AttrColumnDefType:          "SQL_COLUMN_DEF_TYPE",
	AttrColumnDefOptions:       "SQL_COLUMN_DEF_OPTIONS",
	AttrColumnConstraintType:   "SQL_COLUMN_CONSTRAINT_TYPE",
	AttrColumnConstraintValue:  "SQL_COLUMN_CONSTRAINT_VALUE",
	AttrTableConstraintType:    "SQL_TABLE_CONSTRAINT_TYPE",
	AttrTableConstraintColumns: "SQL_TABLE_CONSTRAINT_COLUMNS",
	AttrTypeNameBase:           "SQL_TYPENAME_BASE",
	AttrTypeNameModifiers:      "SQL_TYPENAME_MODIFIERS",
}

func (k AttributeKey) String() string {
	if name, ok := attributeKeyNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Node is a single entry of the flat AST.
//
// Children of a node are contiguous and are emitted before their parent,
// so a statement's root is always the last node of its range.
type Node struct {
	Type   NodeType
	Attr   AttributeKey
	Parent uint32 // NullID for statement roots
	Loc    Location
	// ChildrenBeginOrValue is the first child index for objects and arrays,
	// or the scalar value (name id, enum, bool) otherwise.
	ChildrenBeginOrValue uint32
	ChildrenCount        uint32
}

// Children returns the [begin, end) child range of the node.
func (n Node) Children() (begin, end uint32) {
	if n.Type != NodeArray && !n.Type.IsObject() {
		return 0, 0
	}
	return n.ChildrenBeginOrValue, n.ChildrenBeginOrValue + n.ChildrenCount
}

// StatementType classifies a top-level statement.
type StatementType uint8

// Statement types.
const (
	StatementNone StatementType = iota
	StatementSelect
	StatementCreateTable
	StatementCreateTableAs
)

func (t StatementType) String() string {
	switch t {
	case StatementSelect:
		return "SELECT"
	case StatementCreateTable:
		return "CREATE_TABLE"
	case StatementCreateTableAs:
		return "CREATE_TABLE_AS"
	default:
		return "NONE"
	}
}

// Statement describes the node range of one top-level statement.
type Statement struct {
	Type       StatementType
	Root       uint32
	NodesBegin uint32
	NodeCount  uint32
}

// Expression operators stored in NodeEnumExprOperator values.
type ExprOperator uint32

// Expression operators.
const (
	OpNone ExprOperator = iota
	OpAnd
	OpOr
	OpNot
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpPlus
	OpMinus
	OpMultiply
	OpDivide
	OpModulus
	OpConcat
	OpNegate
	OpLike
	OpNotLike
	OpILike
	OpNotILike
	OpSimilarTo
	OpNotSimilarTo
	OpIn
	OpNotIn
	OpBetween
	OpNotBetween
	OpIsNull
	OpIsNotNull
	OpIsTrue
	OpIsFalse
	OpIsDistinctFrom
	OpIsNotDistinctFrom
	OpPower
)

// Join types stored in NodeEnumJoinType values.
type JoinType uint32

// Join types.
const (
	JoinNone JoinType = iota
	JoinInner
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
	JoinNatural
)

// Order directions stored in NodeEnumOrderDirection values.
const (
	OrderAscending uint32 = iota
	OrderDescending
)

// Null ordering rules stored in NodeEnumOrderNullRule values.
const (
	OrderNullsFirst uint32 = iota
	OrderNullsLast
)

// Combine operations stored in NodeEnumCombineOperation values.
const (
	CombineUnion uint32 = iota
	CombineIntersect
	CombineExcept
)

// Constraint types stored in NodeEnumConstraintType values.
const (
	ConstraintNotNull uint32 = iota
	ConstraintNull
	ConstraintPrimaryKey
	ConstraintUnique
	ConstraintDefault
	ConstraintCheck
	ConstraintReferences
	ConstraintForeignKey
)

var exprOperatorNames = [...]string{
	OpNone:              "NONE",
	OpAnd:               "AND",
	OpOr:                "OR",
	OpNot:               "NOT",
	OpEqual:             "EQUAL",
	OpNotEqual:          "NOT_EQUAL",
	OpLess:              "LESS_THAN",
	OpLessEqual:         "LESS_EQUAL",
	OpGreater:           "GREATER_THAN",
	OpGreaterEqual:      "GREATER_EQUAL",
	OpPlus:              "PLUS",
	OpMinus:             "MINUS",
	OpMultiply:          "MULTIPLY",
	OpDivide:            "DIVIDE",
	OpModulus:           "MODULUS",
	OpConcat:            "CONCAT",
	OpNegate:            "NEGATE",
	OpLike:              "LIKE",
	OpNotLike:           "NOT_LIKE",
	OpILike:             "ILIKE",
	OpNotILike:          "NOT_ILIKE",
	OpSimilarTo:         "SIMILAR_TO",
	OpNotSimilarTo:      "NOT_SIMILAR_TO",
	OpIn:                "IN",
	OpNotIn:             "NOT_IN",
	OpBetween:           "BETWEEN",
	OpNotBetween:        "NOT_BETWEEN",
	OpIsNull:            "IS_NULL",
	OpIsNotNull:         "NOT_NULL",
	OpIsTrue:            "IS_TRUE",
	OpIsFalse:           "IS_FALSE",
	OpIsDistinctFrom:    "IS_DISTINCT_FROM",
	OpIsNotDistinctFrom: "IS_NOT_DISTINCT_FROM",
	OpPower:             "POWER",
}

func (o ExprOperator) String() string {
	if int(o) < len(exprOperatorNames) {
		return exprOperatorNames[o]
	}
	return "UNKNOWN"
}
