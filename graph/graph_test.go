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
package graph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/duet/graph"
)

func TestDependents(t *testing.T) {
	g := graph.New[string]()
	g.AddDependency("app", "lib")
	g.AddDependency("lib", "core")
	g.AddDependency("cli", "core")
	g.AddDependency("app", "lib") // duplicate edge

	assert.Equal(t, []string{"lib"}, g.Dependencies("app"))
	assert.Equal(t, []string{"lib", "cli"}, g.Dependents("core"))
	assert.Equal(t, []string{"app", "lib", "cli"}, g.TransitiveDependents("core"))
	assert.Nil(t, g.Dependents("app"))
	assert.Equal(t, 4, g.Len())
	assert.True(t, g.Has("cli"))
	assert.False(t, g.Has("other"))
}

func TestIdentityKeys(t *testing.T) {
	type ref struct{ path string }
	a, b := &ref{"same"}, &ref{"same"}

	g := graph.New[*ref]()
	g.AddDependency(a, b)

	assert.Equal(t, 2, g.Len(), "structurally equal pointers are distinct nodes")
}

func TestTopologicalSort(t *testing.T) {
	tests := []struct {
		name   string
		edges  [][2]string
		nodes  []string
		want   []string
		cycles [][]string
	}{
		{
			name:  "chain",
			edges: [][2]string{{"A", "B"}, {"B", "C"}},
			want:  []string{"C", "B", "A"},
		},
		{
			name:  "shared dependency",
			edges: [][2]string{{"A", "B"}, {"C", "B"}},
			want:  []string{"B", "A", "C"},
		},
		{
			name:  "isolated nodes keep insertion order",
			nodes: []string{"X", "Y"},
			want:  []string{"X", "Y"},
		},
		{
			name:   "two node cycle",
			edges:  [][2]string{{"A", "B"}, {"B", "A"}},
			cycles: [][]string{{"A", "B"}},
		},
		{
			name:   "self reference",
			edges:  [][2]string{{"A", "A"}},
			cycles: [][]string{{"A"}},
		},
		{
			name:   "every cycle is reported",
			edges:  [][2]string{{"A", "B"}, {"B", "A"}, {"C", "D"}, {"D", "E"}, {"E", "C"}},
			cycles: [][]string{{"A", "B"}, {"C", "D", "E"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graph.New[string]()
			for _, n := range tt.nodes {
				g.AddNode(n)
			}
			for _, e := range tt.edges {
				g.AddDependency(e[0], e[1])
			}

			sorted, cycles := graph.TopologicalSort(g)
			assert.Equal(t, tt.want, sorted)
			assert.Equal(t, tt.cycles, cycles)
		})
	}
}

func TestCycleError(t *testing.T) {
	g := graph.New[string]()
	g.AddDependency("a/tsconfig.json", "b/tsconfig.json")
	g.AddDependency("b/tsconfig.json", "a/tsconfig.json")

	_, cycles := graph.TopologicalSort(g)
	require.Len(t, cycles, 1)

	err := graph.NewCycleError(cycles, func(s string) string { return s })
	assert.True(t, errors.Is(err, graph.ErrCycle))
	assert.Equal(t,
		"project references form a cycle:\n  a/tsconfig.json -> b/tsconfig.json -> a/tsconfig.json",
		err.Error())
}
