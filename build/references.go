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
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"bennypowers.dev/duet/compiler"
	duetfs "bennypowers.dev/duet/fs"
	"bennypowers.dev/duet/graph"
)

// references is the project-reference graph reachable from the root,
// keyed by absolute config path. Edges point from a project to the projects
// it references.
type references struct {
	graph   *graph.DependencyGraph[string]
	configs map[string]*compiler.ParsedConfig
}

func loadReferences(ctx context.Context, c compiler.Compiler, baseDir, rootPath string) (*references, error) {
	r := &references{
		graph:   graph.New[string](),
		configs: make(map[string]*compiler.ParsedConfig),
	}
	r.graph.AddNode(rootPath)
	queue := []string{rootPath}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if _, ok := r.configs[p]; ok {
			continue
		}
		cfg, err := c.ParseConfig(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", relative(baseDir, p), err)
		}
		if errs := compiler.Errors(cfg.Errors); len(errs) > 0 {
			return nil, &compiler.DiagnosticsError{Project: relative(baseDir, p), Diagnostics: errs}
		}
		r.configs[p] = cfg
		for _, ref := range cfg.References {
			r.graph.AddDependency(p, ref.Path)
			if _, ok := r.configs[ref.Path]; !ok {
				queue = append(queue, ref.Path)
			}
		}
	}
	return r, nil
}

// direct returns the configs p references.
func (r *references) direct(p string) []*compiler.ParsedConfig {
	var out []*compiler.ParsedConfig
	for _, dep := range r.graph.Dependencies(p) {
		out = append(out, r.configs[dep])
	}
	return out
}

// closure returns every config reachable from p, nearest first, excluding p.
func (r *references) closure(p string) []*compiler.ParsedConfig {
	seen := map[string]bool{p: true}
	var out []*compiler.ParsedConfig
	queue := r.graph.Dependencies(p)
	for len(queue) > 0 {
		dep := queue[0]
		queue = queue[1:]
		if seen[dep] {
			continue
		}
		seen[dep] = true
		out = append(out, r.configs[dep])
		queue = append(queue, r.graph.Dependencies(dep)...)
	}
	return out
}

// shadows writes the .d.ts files the compiler expects from a referenced
// project, copied from the renamed declarations duet actually emitted.
// They are removed when the build ends.
type shadows struct {
	fs      duetfs.FileSystem
	mu      sync.Mutex
	created []string
	done    map[string]bool
}

func newShadows(fsys duetfs.FileSystem) *shadows {
	return &shadows{fs: fsys, done: make(map[string]bool)}
}

func (s *shadows) add(cfg *compiler.ParsedConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done[cfg.ConfigPath] {
		return nil
	}
	s.done[cfg.ConfigPath] = true

	for _, pair := range cfg.DeclarationOutputs() {
		if duetfs.IsFile(s.fs, pair.Output) {
			continue
		}
		for _, variant := range compiler.DeclarationVariants(pair.Output)[1:] {
			data, err := s.fs.ReadFile(variant)
			if err != nil {
				continue
			}
			if err := s.fs.WriteFile(pair.Output, data, 0o644); err != nil {
				return fmt.Errorf("shadow %s: %w", pair.Output, err)
			}
			s.created = append(s.created, pair.Output)
			break
		}
	}
	return nil
}

func (s *shadows) cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, p := range s.created {
		if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	s.created = nil
	return errors.Join(errs...)
}
