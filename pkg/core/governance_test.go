//go:build governance

package core_test

import (
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const modulePath = "github.com/leapstack-labs/dashql"

// pipelineLayers orders the pipeline packages. A package may only import
// packages of a lower layer.
var pipelineLayers = map[string]int{
	"pkg/core":       0,
	"pkg/token":      1,
	"pkg/names":      1,
	"pkg/rope":       1,
	"pkg/scanner":    2,
	"pkg/parser":     3,
	"pkg/catalog":    3,
	"pkg/analyzer":   4,
	"pkg/cursor":     5,
	"pkg/completion": 6,
	"pkg/script":     7,
}

// TestGovernance_PipelineLayering verifies that data only flows downstream:
// scanner, parser, analyzer, cursor, completion, script.
func TestGovernance_PipelineLayering(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, modulePath+"/pkg/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	base := modulePath + "/"
	for _, p := range pkgs {
		rel := strings.TrimPrefix(p.PkgPath, base)
		layer, ok := pipelineLayers[rel]
		if !ok {
			continue
		}
		for imp := range p.Imports {
			impRel := strings.TrimPrefix(imp, base)
			impLayer, ok := pipelineLayers[impRel]
			if !ok {
				continue
			}
			if impLayer >= layer && impRel != rel {
				t.Errorf("LAYERING VIOLATION: '%s' imports '%s'.\n"+
					"   Fix: pipeline packages may only import earlier stages.", rel, impRel)
			}
		}
	}
}

// TestGovernance_PkgDoesNotImportInternal keeps the library surface free of
// application packages.
func TestGovernance_PkgDoesNotImportInternal(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, modulePath+"/pkg/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}
	for _, p := range pkgs {
		for imp := range p.Imports {
			if strings.HasPrefix(imp, modulePath+"/internal/") {
				t.Errorf("%s imports internal package %s", p.PkgPath, imp)
			}
		}
	}
}
