package completion

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/token"
)

// Score modifiers.
const (
	PrefixScoreModifier         = 20
	SubstringScoreModifier      = 15
	ResolvingTableScoreModifier = 2
	UnresolvedPeerScoreModifier = 2
	DotSchemaScoreModifier      = 2
	DotTableScoreModifier       = 2
	DotColumnScoreModifier      = 2
)

// Keyword prevalence scores. They only reorder keywords of similar rank.
const (
	KeywordDefault     = 0
	KeywordPopular     = 2
	KeywordVeryPopular = 3
)

const (
	tagIgnore   = 0
	tagUnlikely = 10
	tagLikely   = 20
)

type scoringTable map[core.NameTags]int

var scoringTables = map[Strategy]scoringTable{
	StrategyDefault: {},
	StrategyTableRef: {
		core.NameTagDatabase: tagLikely,
		core.NameTagSchema:   tagLikely,
		core.NameTagTable:    tagLikely,
		core.NameTagColumn:   tagUnlikely,
	},
	StrategyColumnRef: {
		core.NameTagTable:  tagUnlikely,
		core.NameTagAlias:  tagLikely,
		core.NameTagColumn: tagLikely,
	},
}

// score returns the best score of any tag in tags.
func (s scoringTable) score(tags core.NameTags) int {
	best := tagIgnore
	for _, tag := range core.AllNameTags {
		if tags&tag != 0 {
			best = max(best, s[tag])
		}
	}
	return best
}

var keywordPrevalence = map[token.TokenType]int{
	token.AND:    KeywordVeryPopular,
	token.FROM:   KeywordVeryPopular,
	token.GROUP:  KeywordVeryPopular,
	token.ORDER:  KeywordVeryPopular,
	token.SELECT: KeywordVeryPopular,
	token.WHERE:  KeywordVeryPopular,

	token.AS:     KeywordPopular,
	token.ASC:    KeywordPopular,
	token.BY:     KeywordPopular,
	token.CASE:   KeywordPopular,
	token.CAST:   KeywordPopular,
	token.DESC:   KeywordPopular,
	token.END:    KeywordPopular,
	token.LIKE:   KeywordPopular,
	token.LIMIT:  KeywordPopular,
	token.OFFSET: KeywordPopular,
	token.OR:     KeywordPopular,
	token.SET:    KeywordPopular,
	token.THEN:   KeywordPopular,
	token.WHEN:   KeywordPopular,
	token.WITH:   KeywordPopular,
}

func keywordScore(t token.TokenType) int {
	if s, ok := keywordPrevalence[t]; ok {
		return s
	}
	return KeywordDefault
}

// skipSymbol reports punctuation and operators that are never completed.
func skipSymbol(t token.TokenType) bool {
	switch t {
	case token.COMMA, token.LPAREN, token.RPAREN, token.LBRACKET, token.RBRACKET,
		token.SEMICOLON, token.COLON, token.PLUS, token.MINUS, token.STAR,
		token.SLASH, token.PERCENT, token.QUESTION, token.CARET, token.LT,
		token.GT, token.EQ:
		return true
	}
	return false
}

// matchScore classifies query as a prefix or substring of name, ignoring
// case. The empty query matches without a modifier.
func matchScore(name, query string) (int, bool) {
	if query == "" {
		return 0, true
	}
	fold := cases.Fold()
	switch strings.Index(fold.String(name), fold.String(query)) {
	case -1:
		return 0, false
	case 0:
		return PrefixScoreModifier, true
	default:
		return SubstringScoreModifier, true
	}
}

func describeTags(tags core.NameTags) string {
	var parts []string
	for _, tag := range core.AllNameTags {
		if tags&tag == 0 {
			continue
		}
		switch tag {
		case core.NameTagKeyword:
			parts = append(parts, "keyword")
		case core.NameTagDatabase:
			parts = append(parts, "database")
		case core.NameTagSchema:
			parts = append(parts, "schema")
		case core.NameTagTable:
			parts = append(parts, "table")
		case core.NameTagAlias:
			parts = append(parts, "alias")
		case core.NameTagColumn:
			parts = append(parts, "column")
		}
	}
	return strings.Join(parts, ", ")
}
