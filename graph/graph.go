/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package graph orders and schedules interdependent build units.
package graph

import (
	"slices"
	"sync"
)

// DependencyGraph tracks which nodes depend on which. Nodes are compared by
// identity (==), so pointer nodes are distinct even when structurally equal.
// Iteration follows insertion order, which keeps sorting deterministic.
type DependencyGraph[T comparable] struct {
	mu sync.RWMutex

	// order is every node in the order it was first seen
	order []T
	index map[T]int

	// dependsOn maps node -> its direct dependencies, in insertion order
	dependsOn map[T][]T

	// dependents maps node -> set of nodes that depend on it
	dependents map[T]map[T]bool
}

// New creates an empty dependency graph.
func New[T comparable]() *DependencyGraph[T] {
	return &DependencyGraph[T]{
		index:      make(map[T]int),
		dependsOn:  make(map[T][]T),
		dependents: make(map[T]map[T]bool),
	}
}

// AddNode records a node with no dependencies. Adding a node twice is a no-op.
func (g *DependencyGraph[T]) AddNode(node T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(node)
}

func (g *DependencyGraph[T]) addNodeLocked(node T) {
	if _, ok := g.index[node]; ok {
		return
	}
	g.index[node] = len(g.order)
	g.order = append(g.order, node)
}

// AddDependency records that node depends on dep, adding both nodes.
func (g *DependencyGraph[T]) AddDependency(node, dep T) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.addNodeLocked(node)
	g.addNodeLocked(dep)

	if slices.Contains(g.dependsOn[node], dep) {
		return
	}
	g.dependsOn[node] = append(g.dependsOn[node], dep)

	if g.dependents[dep] == nil {
		g.dependents[dep] = make(map[T]bool)
	}
	g.dependents[dep][node] = true
}

// Nodes returns every node in insertion order.
func (g *DependencyGraph[T]) Nodes() []T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.order)
}

// Len returns the number of nodes.
func (g *DependencyGraph[T]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// Has reports whether node is in the graph.
func (g *DependencyGraph[T]) Has(node T) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.index[node]
	return ok
}

// Dependencies returns the direct dependencies of node.
func (g *DependencyGraph[T]) Dependencies(node T) []T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.dependsOn[node])
}

// Dependents returns all nodes that directly depend on node.
func (g *DependencyGraph[T]) Dependents(node T) []T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedLocked(g.dependents[node])
}

// TransitiveDependents returns all nodes that directly or indirectly depend on node.
// Uses breadth-first traversal to find all dependents.
func (g *DependencyGraph[T]) TransitiveDependents(node T) []T {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[T]bool)
	queue := []T{node}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for dep := range g.dependents[current] {
			if !visited[dep] && dep != node {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	return g.sortedLocked(visited)
}

func (g *DependencyGraph[T]) sortedLocked(set map[T]bool) []T {
	if len(set) == 0 {
		return nil
	}
	result := make([]T, 0, len(set))
	for n := range set {
		result = append(result, n)
	}
	slices.SortFunc(result, func(a, b T) int {
		return g.index[a] - g.index[b]
	})
	return result
}
