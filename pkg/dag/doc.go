// Package dag provides a small directed graph over integer node IDs used to
// order solver variables.
//
// # Overview
//
// One-dimensional nudging starts from "item i must sit left of item j"
// relations. Those relations form a directed graph whose nodes are solver
// variable indices. Before the relations can become separation constraints
// the graph must be acyclic, otherwise the solver would be handed a
// contradictory system. This package stores that graph; the transform
// subpackage breaks its cycles.
//
// # Basic Usage
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: 0})
//	g.AddNode(dag.Node{ID: 1})
//	g.AddEdge(dag.Edge{From: 0, To: 1})
//
// Query the graph with [DAG.Children], [DAG.Parents], [DAG.Sources] and
// related methods. [DAG.Validate] reports dangling edges and cycles, and
// [DAG.TopologicalOrder] returns a deterministic left-to-right order.
//
// # Determinism
//
// Node listings are sorted by ID and adjacency lists keep insertion order.
// Algorithms written against this package therefore make the same choices
// on every run, which keeps solver input and output reproducible.
//
// # Metadata
//
// Nodes, edges and the graph itself carry a [Metadata] map for arbitrary
// annotations such as labels or widths. Metadata maps are never nil after
// insertion.
package dag
