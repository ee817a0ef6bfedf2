package dag_test

import (
	"fmt"

	"github.com/matzehuels/projector/pkg/dag"
)

func ExampleDAG_basic() {
	// Three items that must appear left to right: 0 → 1 → 2
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: 0})
	_ = g.AddNode(dag.Node{ID: 1})
	_ = g.AddNode(dag.Node{ID: 2})
	_ = g.AddEdge(dag.Edge{From: 0, To: 1})
	_ = g.AddEdge(dag.Edge{From: 1, To: 2})

	fmt.Println("Nodes:", g.NodeCount())
	fmt.Println("Edges:", g.EdgeCount())
	// Output:
	// Nodes: 3
	// Edges: 2
}

func ExampleDAG_TopologicalOrder() {
	g := dag.New(nil)
	for id := range 4 {
		_ = g.AddNode(dag.Node{ID: id})
	}
	_ = g.AddEdge(dag.Edge{From: 3, To: 0})
	_ = g.AddEdge(dag.Edge{From: 2, To: 1})

	order, err := g.TopologicalOrder()
	fmt.Println(order, err)
	// Output:
	// [2 1 3 0] <nil>
}

func ExampleDAG_Validate() {
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: 0})
	_ = g.AddNode(dag.Node{ID: 1})
	_ = g.AddEdge(dag.Edge{From: 0, To: 1})
	_ = g.AddEdge(dag.Edge{From: 1, To: 0})

	fmt.Println(g.Validate())
	// Output:
	// graph contains a cycle
}

func ExampleDAG_Sources() {
	g := dag.New(nil)
	for id := range 3 {
		_ = g.AddNode(dag.Node{ID: id})
	}
	_ = g.AddEdge(dag.Edge{From: 1, To: 0})

	for _, n := range g.Sources() {
		fmt.Println(n.ID)
	}
	// Output:
	// 1
	// 2
}
