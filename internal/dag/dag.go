// Package dag provides the dependency graph behind renderpass execution
// ordering: a directed acyclic graph over string-named nodes with a
// deterministic topological sort that breaks ties by insertion order.
//
// The graph is not safe for concurrent use; the rendergraph builds and
// sorts it from a single goroutine by contract.
package dag

import (
	"fmt"
	"sort"
)

// Graph is a set of named nodes and directed dependency edges.
type Graph struct {
	nodes map[string]*node
}

type node struct {
	id string

	// index is the insertion order, used as the deterministic tie-break.
	index int

	// deps are the nodes this node must run after.
	deps map[string]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode adds a node. Adding an existing id is a no-op, preserving the
// original insertion index.
func (g *Graph) AddNode(id string) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{
		id:    id,
		index: len(g.nodes),
		deps:  make(map[string]struct{}),
	}
}

// AddEdge records that to depends on from (from runs first). Both nodes
// must already exist. Self-edges are rejected; a pass that reads its own
// output imposes no ordering on itself.
func (g *Graph) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("dag: self-referential edge on %q", from)
	}
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("dag: unknown source node %q", from)
	}
	toNode, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("dag: unknown destination node %q", to)
	}

	toNode.deps[from] = struct{}{}
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Sort returns a topological ordering of all nodes: every node appears
// exactly once, after all of its dependencies. Nodes with no ordering
// between them appear in insertion order. Returns an error naming one node
// on a cycle if the graph is cyclic.
func (g *Graph) Sort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]*node, len(g.nodes))
	for _, n := range g.nodes {
		indegree[n.id] = len(n.deps)
		for dep := range n.deps {
			dependents[dep] = append(dependents[dep], n)
		}
	}

	ready := make([]*node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if indegree[n.id] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		// Smallest insertion index first keeps the order deterministic.
		sort.Slice(ready, func(i, j int) bool { return ready[i].index < ready[j].index })

		next := ready[0]
		ready = ready[1:]
		order = append(order, next.id)

		for _, dep := range dependents[next.id] {
			indegree[dep.id]--
			if indegree[dep.id] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(g.nodes) {
		for id, deg := range indegree {
			if deg > 0 {
				return nil, fmt.Errorf("dag: cycle detected involving node %q", id)
			}
		}
	}

	return order, nil
}
