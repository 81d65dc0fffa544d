// Package names interns the identifiers of a script or descriptor pool.
//
// A Registry assigns dense ids to normalized names, accumulates the tags that
// describe how a name is used and counts its occurrences. The search index
// answers prefix and substring queries for completion.
package names
