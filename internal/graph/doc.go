// Package graph implements the dependency graph used to order resource
// declarations.
//
// An edge from A to B means "A depends on B": B must be applied before A and
// destroyed after it. Every ordering the package returns is deterministic for
// a given graph, independent of insertion order.
package graph
