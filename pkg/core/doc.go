// Package core defines the shared language of the DashQL script pipeline.
//
// This package contains:
//   - Text locations and composite external object ids
//   - The flat AST node model (node types, attribute keys, statements)
//   - Highlighting token types and name tags
//   - Sentinel errors shared by every pipeline stage
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
