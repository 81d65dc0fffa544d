package lsp

import (
	"fmt"

	"github.com/leapstack-labs/dashql/pkg/completion"
	"github.com/leapstack-labs/dashql/pkg/core"
)

// getCompletions places the cursor of the document's script and converts
// the ranked candidates into completion items.
func (s *Server) getCompletions(params CompletionParams) []CompletionItem {
	s.ensureFresh()
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return []CompletionItem{}
	}

	offset := doc.PositionToOffset(params.Position)
	if _, err := doc.Script.MoveCursor(offset); err != nil {
		s.logger.Debug("cursor not placed", "uri", doc.URI, "error", err)
		return []CompletionItem{}
	}
	result, err := doc.Script.CompleteAtCursor(s.completionLimit)
	if err != nil {
		s.logger.Error("completion failed", "uri", doc.URI, "error", err)
		return []CompletionItem{}
	}
	s.logger.Debug("completed",
		"uri", doc.URI,
		"offset", offset,
		"strategy", result.Strategy.String(),
		"action", result.Action.String(),
		"candidates", len(result.Candidates))

	items := make([]CompletionItem, 0, len(result.Candidates))
	for i, c := range result.Candidates {
		items = append(items, completionItem(doc, c, i))
	}
	return items
}

// completionItem keeps the engine's ranking through SortText.
func completionItem(doc *Document, c completion.Candidate, rank int) CompletionItem {
	text := c.Text
	if text == "" {
		text = c.Label
	}
	return CompletionItem{
		Label:      c.Label,
		Kind:       completionKind(c.Tags),
		Detail:     c.Detail,
		Preselect:  rank == 0,
		SortText:   fmt.Sprintf("%04d", rank),
		FilterText: c.Label,
		TextEdit: &TextEdit{
			Range:   doc.RangeOf(c.ReplaceText.Offset, c.ReplaceText.Length),
			NewText: text,
		},
	}
}

// completionKind picks an item kind from the most specific tag.
func completionKind(tags core.NameTags) CompletionItemKind {
	switch {
	case tags&core.NameTagColumn != 0:
		return CompletionItemKindField
	case tags&core.NameTagTable != 0:
		return CompletionItemKindClass
	case tags&core.NameTagAlias != 0:
		return CompletionItemKindVariable
	case tags&(core.NameTagSchema|core.NameTagDatabase) != 0:
		return CompletionItemKindModule
	case tags&core.NameTagKeyword != 0:
		return CompletionItemKindKeyword
	default:
		return CompletionItemKindText
	}
}
