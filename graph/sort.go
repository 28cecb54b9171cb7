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
package graph

import (
	"errors"
	"slices"
	"strings"
)

// ErrCycle matches any *CycleError.
var ErrCycle = errors.New("dependency cycle")

type visitState int

const (
	unvisited visitState = iota
	inProgress
	resolved
)

// TopologicalSort orders nodes so that every node follows its dependencies.
// It reports every cycle it finds, each as the chain of nodes from the
// first node re-entered. When there are cycles the order is nil.
func TopologicalSort[T comparable](g *DependencyGraph[T]) (sorted []T, cycles [][]T) {
	state := make(map[T]visitState)
	var stack []T

	var visit func(node T)
	visit = func(node T) {
		state[node] = inProgress
		stack = append(stack, node)

		for _, dep := range g.Dependencies(node) {
			switch state[dep] {
			case unvisited:
				visit(dep)
			case inProgress:
				start := slices.Index(stack, dep)
				cycles = append(cycles, slices.Clone(stack[start:]))
			}
		}

		stack = stack[:len(stack)-1]
		state[node] = resolved
		sorted = append(sorted, node)
	}

	for _, node := range g.Nodes() {
		if state[node] == unvisited {
			visit(node)
		}
	}

	if len(cycles) > 0 {
		return nil, cycles
	}
	return sorted, nil
}

// CycleError reports the cycles found in a dependency graph, each as a
// chain of node names.
type CycleError struct {
	Cycles [][]string
}

// NewCycleError names the nodes of each cycle.
func NewCycleError[T comparable](cycles [][]T, name func(T) string) *CycleError {
	err := &CycleError{Cycles: make([][]string, 0, len(cycles))}
	for _, cycle := range cycles {
		names := make([]string, len(cycle))
		for i, n := range cycle {
			names[i] = name(n)
		}
		err.Cycles = append(err.Cycles, names)
	}
	return err
}

func (e *CycleError) Error() string {
	var b strings.Builder
	b.WriteString("project references form a cycle:")
	for _, cycle := range e.Cycles {
		b.WriteString("\n  ")
		b.WriteString(strings.Join(cycle, " -> "))
		if len(cycle) > 0 {
			b.WriteString(" -> ")
			b.WriteString(cycle[0])
		}
	}
	return b.String()
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}
