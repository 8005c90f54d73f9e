// Copyright Amazon.com Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//     http://aws.amazon.com/apache2.0/
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Vertex is a node in the graph.
type Vertex struct {
	// ID uniquely identifies the vertex.
	ID string
	// Edges holds the IDs of the vertices this vertex depends on.
	Edges map[string]struct{}
}

// DirectedAcyclicGraph is a dependency graph that refuses edges which would
// introduce a cycle.
type DirectedAcyclicGraph struct {
	Vertices map[string]*Vertex
}

// NewDirectedAcyclicGraph creates an empty graph.
func NewDirectedAcyclicGraph() *DirectedAcyclicGraph {
	return &DirectedAcyclicGraph{
		Vertices: make(map[string]*Vertex),
	}
}

// AddVertex adds a new vertex to the graph.
func (d *DirectedAcyclicGraph) AddVertex(id string) error {
	if _, exists := d.Vertices[id]; exists {
		return fmt.Errorf("vertex %s already exists", id)
	}
	d.Vertices[id] = &Vertex{
		ID:    id,
		Edges: make(map[string]struct{}),
	}
	return nil
}

// CycleError is returned when an edge would make the graph cyclic.
type CycleError struct {
	From, To string
	Cycle    []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cannot add dependency from %s on %s: this would create a cycle: %s",
		e.From, e.To, strings.Join(e.Cycle, " -> "))
}

// AddEdge records that from depends on to.
func (d *DirectedAcyclicGraph) AddEdge(from, to string) error {
	fromVertex, fromExists := d.Vertices[from]
	_, toExists := d.Vertices[to]
	if !fromExists {
		return fmt.Errorf("vertex %s does not exist", from)
	}
	if !toExists {
		return fmt.Errorf("vertex %s does not exist", to)
	}
	if from == to {
		return &CycleError{From: from, To: to, Cycle: []string{from, to}}
	}

	fromVertex.Edges[to] = struct{}{}

	if cyclic, cycle := d.HasCycle(); cyclic {
		delete(fromVertex.Edges, to)
		return &CycleError{From: from, To: to, Cycle: cycle}
	}
	return nil
}

// TopologicalSort returns the vertices with every dependency ahead of its
// dependents.
func (d *DirectedAcyclicGraph) TopologicalSort() ([]string, error) {
	levels, err := d.Levels()
	if err != nil {
		return nil, err
	}
	order := make([]string, 0, len(d.Vertices))
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}

// Levels groups vertices by depth. Level 0 holds vertices without
// dependencies; every vertex in level n depends only on vertices in levels
// below n. IDs are sorted within each level.
func (d *DirectedAcyclicGraph) Levels() ([][]string, error) {
	if cyclic, cycle := d.HasCycle(); cyclic {
		return nil, fmt.Errorf("graph has a cycle: %s", strings.Join(cycle, " -> "))
	}

	depth := make(map[string]int, len(d.Vertices))
	var visit func(string) int
	visit = func(id string) int {
		if v, ok := depth[id]; ok {
			return v
		}
		level := 0
		for dep := range d.Vertices[id].Edges {
			if l := visit(dep) + 1; l > level {
				level = l
			}
		}
		depth[id] = level
		return level
	}

	maxLevel := -1
	for _, id := range d.GetVertices() {
		if l := visit(id); l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]string, maxLevel+1)
	for _, id := range d.GetVertices() {
		levels[depth[id]] = append(levels[depth[id]], id)
	}
	return levels, nil
}

// Dependents returns the IDs of vertices that directly depend on id, sorted.
func (d *DirectedAcyclicGraph) Dependents(id string) []string {
	var out []string
	for _, from := range d.GetVertices() {
		if _, ok := d.Vertices[from].Edges[id]; ok {
			out = append(out, from)
		}
	}
	return out
}

// GetVertices returns the vertex IDs in sorted order.
func (d *DirectedAcyclicGraph) GetVertices() []string {
	ids := make([]string, 0, len(d.Vertices))
	for id := range d.Vertices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetEdges returns all edges sorted by source, then target.
func (d *DirectedAcyclicGraph) GetEdges() [][2]string {
	var edges [][2]string
	for from, v := range d.Vertices {
		for to := range v.Edges {
			edges = append(edges, [2]string{from, to})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] == edges[j][0] {
			return edges[i][1] < edges[j][1]
		}
		return edges[i][0] < edges[j][0]
	})
	return edges
}

// HasCycle reports whether the graph contains a cycle and, if so, returns one.
func (d *DirectedAcyclicGraph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var path []string

	var dfs func(string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		edges := make([]string, 0, len(d.Vertices[id].Edges))
		for to := range d.Vertices[id].Edges {
			edges = append(edges, to)
		}
		sort.Strings(edges)

		for _, to := range edges {
			if !visited[to] {
				if dfs(to) {
					return true
				}
			} else if onStack[to] {
				path = append(path, to)
				return true
			}
		}

		onStack[id] = false
		path = path[:len(path)-1]
		return false
	}

	for _, id := range d.GetVertices() {
		if visited[id] {
			continue
		}
		path = nil
		if dfs(id) {
			last := path[len(path)-1]
			start := 0
			for i, v := range path[:len(path)-1] {
				if v == last {
					start = i
					break
				}
			}
			return true, path[start:]
		}
	}
	return false, nil
}
