package script

import (
	"time"
	"unsafe"

	"github.com/leapstack-labs/dashql/pkg/analyzer"
	"github.com/leapstack-labs/dashql/pkg/core"
	"github.com/leapstack-labs/dashql/pkg/scanner"
)

// Statistics describes the latest pipeline run of a script.
type Statistics struct {
	Revision uint64
	TextSize int
	Symbols  int
	Nodes    int
	Tables   int

	ScannerDuration    time.Duration
	ParserDuration     time.Duration
	AnalyzerDuration   time.Duration
	CompletionDuration time.Duration

	// Memory estimates in bytes.
	ScannerMemory  uint64
	ParserMemory   uint64
	AnalyzerMemory uint64
}

// Statistics returns timings and size estimates for the stages of the
// current revision. Stages that were reset report zero.
func (s *Script) Statistics() Statistics {
	st := s.stats
	st.Revision = s.revision
	st.TextSize = s.text.Len()
	st.Symbols, st.Nodes, st.Tables = 0, 0, 0
	st.ScannerMemory, st.ParserMemory, st.AnalyzerMemory = 0, 0, 0

	if s.scanned != nil {
		st.Symbols = s.scanned.SymbolCount()
		st.ScannerMemory = uint64(len(s.scanned.Text)) +
			uint64(len(s.scanned.Symbols))*uint64(unsafe.Sizeof(scanner.Symbol{})) +
			uint64(len(s.scanned.LineBreaks))*uint64(unsafe.Sizeof(core.Location{}))
	} else {
		st.ScannerDuration = 0
	}
	if s.parsed != nil {
		st.Nodes = len(s.parsed.Nodes)
		st.ParserMemory = uint64(len(s.parsed.Nodes))*uint64(unsafe.Sizeof(core.Node{})) +
			uint64(len(s.parsed.Statements))*uint64(unsafe.Sizeof(core.Statement{}))
	} else {
		st.ParserDuration = 0
	}
	if s.analyzed != nil {
		st.Tables = len(s.analyzed.Tables())
		st.AnalyzerMemory = uint64(len(s.analyzed.TableRefs))*uint64(unsafe.Sizeof(analyzer.TableReference{})) +
			uint64(len(s.analyzed.ColumnRefs))*uint64(unsafe.Sizeof(analyzer.ColumnReference{})) +
			uint64(len(s.analyzed.Scopes))*uint64(unsafe.Sizeof(analyzer.NameScope{}))
	} else {
		st.AnalyzerDuration = 0
	}
	return st
}
