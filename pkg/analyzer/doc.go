// Package analyzer resolves the names of a parsed script against a catalog
// snapshot.
//
// Analysis is a single pass over the post-order AST. Table references and
// column references are collected bottom-up into name scopes, one per
// SELECT and CREATE statement, and resolved once the pass reached the end:
// table references against the tables the script declares itself and then
// against the catalog entries by rank, column references through the
// innermost scope outward.
//
// The result is an AnalyzedScript. It implements catalog.ScriptEntry, so a
// schema script can be loaded into a catalog and resolve the references of
// other scripts.
package analyzer
