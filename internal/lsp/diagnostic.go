package lsp

import (
	"errors"

	"github.com/leapstack-labs/dashql/pkg/core"
)

// refreshAll reruns the pipeline of changed and of every other open
// document, since their references may resolve against tables changed
// declares. A nil changed refreshes the other documents only.
func (s *Server) refreshAll(changed *Document) {
	if changed != nil {
		s.publishDiagnostics(changed, s.runPipeline(changed))
	}
	for _, uri := range s.documents.List() {
		doc := s.documents.Get(uri)
		if doc == nil || doc == changed {
			continue
		}
		s.publishDiagnostics(doc, s.runPipeline(doc))
	}
	s.analyzedAt = s.catalog.Version()
}

// ensureFresh refreshes all open documents when the catalog was changed by
// someone else, e.g. the file watcher or a metadata refresh. Loading a
// document bumps the catalog version, so the version after the last
// refresh is compared instead of the one each analysis observed.
func (s *Server) ensureFresh() {
	if s.catalog.Version() == s.analyzedAt {
		return
	}
	s.logger.Debug("catalog changed, reanalyzing", "from", s.analyzedAt, "to", s.catalog.Version())
	s.refreshAll(nil)
}

// runPipeline scans, parses and analyzes a document and loads its tables
// into the catalog. It returns the diagnostics of all stages.
func (s *Server) runPipeline(doc *Document) []core.Diagnostic {
	var diags []core.Diagnostic

	scanned, err := doc.Script.Scan()
	if err != nil {
		s.logger.Error("scan failed", "uri", doc.URI, "error", err)
		return diags
	}
	if v, err := scanned.Read(); err == nil {
		diags = append(diags, v.Diagnostics()...)
	}

	parsed, err := doc.Script.Parse()
	if err != nil {
		s.logger.Error("parse failed", "uri", doc.URI, "error", err)
		return diags
	}
	if v, err := parsed.Read(); err == nil {
		diags = append(diags, v.Diagnostics()...)
	}

	analyzed, err := doc.Script.Analyze()
	if err != nil {
		if errors.Is(err, core.ErrExternalIDCollision) {
			return append(diags, core.Diagnostic{
				Severity: core.SeverityError,
				Source:   "analyzer",
				Code:     "EXTERNAL_ID_COLLISION",
				Message:  err.Error(),
			})
		}
		s.logger.Error("analyze failed", "uri", doc.URI, "error", err)
		return diags
	}
	if err := doc.Script.LoadInto(s.catalog, DocumentRank); err != nil {
		s.logger.Error("load failed", "uri", doc.URI, "error", err)
	}
	if v, err := analyzed.Read(); err == nil {
		diags = append(diags, v.Diagnostics()...)
	}
	return diags
}

// publishDiagnostics converts stage diagnostics and sends them to the client.
func (s *Server) publishDiagnostics(doc *Document, diags []core.Diagnostic) {
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, convertDiagnostic(doc, d))
	}
	version := doc.Version
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         doc.URI,
		Version:     &version,
		Diagnostics: out,
	})
}

func convertDiagnostic(doc *Document, d core.Diagnostic) Diagnostic {
	return Diagnostic{
		Range:    doc.RangeOf(d.Loc.Offset, d.Loc.Length),
		Severity: convertSeverity(d.Severity),
		Code:     d.Code,
		Source:   "dashql-" + d.Source,
		Message:  d.Message,
	}
}

func convertSeverity(sev core.Severity) DiagnosticSeverity {
	switch sev {
	case core.SeverityWarning:
		return DiagnosticSeverityWarning
	case core.SeverityInfo:
		return DiagnosticSeverityInformation
	case core.SeverityHint:
		return DiagnosticSeverityHint
	default:
		return DiagnosticSeverityError
	}
}
