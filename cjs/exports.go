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
package cjs

import (
	"fmt"
	"sync"

	"bennypowers.dev/duet/fs"
	"bennypowers.dev/duet/packagejson"
	"bennypowers.dev/duet/resolve"
)

// ImportNotDefinedError reports a named import that a CommonJS module does
// not statically expose.
type ImportNotDefinedError struct {
	Specifier string
	Name      string
}

func (e *ImportNotDefinedError) Error() string {
	return fmt.Sprintf("the requested module '%s' does not provide an export named '%s'", e.Specifier, e.Name)
}

// Extractor enumerates the named exports of CommonJS modules. Analyses are
// cached per file for the lifetime of the extractor.
type Extractor struct {
	fs fs.FileSystem
	// importer resolves the specifier as an ES module would.
	importer *resolve.Resolver
	// requirer resolves re-exports, which are require() calls.
	requirer *resolve.Resolver

	mu       sync.Mutex
	analyses map[string]*Analysis
}

// NewExtractor creates an extractor. A nil resolver uses a fresh one over fsys.
func NewExtractor(fsys fs.FileSystem, resolver *resolve.Resolver) *Extractor {
	if resolver == nil {
		resolver = resolve.New(fsys)
	}
	return &Extractor{
		fs:       fsys,
		importer: resolver,
		requirer: resolver.WithConditions(packagejson.RequireConditions),
		analyses: make(map[string]*Analysis),
	}
}

// GetExports resolves specifier from parentURL and returns the names a
// CommonJS target exposes, including everything it re-exports. A target
// that is not CommonJS yields an empty set.
func GetExports(fsys fs.FileSystem, specifier, parentURL string) (Set, error) {
	return NewExtractor(fsys, nil).GetExports(specifier, parentURL)
}

// GetExports resolves specifier from parentURL and returns the names a
// CommonJS target exposes. A target that is not CommonJS yields an empty set.
func (e *Extractor) GetExports(specifier, parentURL string) (Set, error) {
	if err := EnsureInitialized(); err != nil {
		return nil, err
	}
	mod, err := e.importer.Resolve(specifier, parentURL)
	if err != nil {
		return nil, err
	}
	names := make(Set)
	if mod.Format != resolve.FormatCommonJS {
		return names, nil
	}
	if err := e.collect(mod.Path, names, make(map[string]bool), false); err != nil {
		return nil, err
	}
	return names, nil
}

// collect unions the exports of path into names. visited guards against
// circular re-exports.
func (e *Extractor) collect(path string, names Set, visited map[string]bool, reexported bool) error {
	if visited[path] {
		return nil
	}
	visited[path] = true

	analysis, err := e.analyze(path)
	if err != nil {
		return err
	}
	for _, name := range analysis.Exports {
		// A re-exported module's default is its own, not ours.
		if reexported && name == "default" {
			continue
		}
		names.Add(name)
	}

	for _, specifier := range analysis.Reexports {
		mod, err := e.requirer.Resolve(specifier, path)
		if err != nil || mod.Format != resolve.FormatCommonJS {
			// Unresolvable or non-CommonJS re-exports contribute nothing
			// statically; node does the same.
			continue
		}
		if err := e.collect(mod.Path, names, visited, true); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) analyze(path string) (*Analysis, error) {
	e.mu.Lock()
	cached, ok := e.analyses[path]
	e.mu.Unlock()
	if ok {
		return cached, nil
	}

	source, err := e.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	analysis, err := Analyze(source)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", path, err)
	}

	e.mu.Lock()
	e.analyses[path] = analysis
	e.mu.Unlock()
	return analysis, nil
}
