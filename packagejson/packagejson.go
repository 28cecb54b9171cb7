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
// Package packagejson provides parsing and export resolution for package.json files.
package packagejson

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"bennypowers.dev/duet/fs"
)

var (
	// ErrNotExported is returned when a subpath is not exported by the package.
	ErrNotExported = errors.New("not exported by package.json")

	// ErrInvalidTarget is returned when an exports or imports target is not a
	// "./"-relative string, a condition map, an array or null.
	ErrInvalidTarget = errors.New("invalid package target")

	// ErrInvalidConfig is returned for package.json files that cannot be parsed,
	// or whose exports map mixes subpath keys with condition keys.
	ErrInvalidConfig = errors.New("invalid package configuration")
)

// DefaultConditions is the export condition priority for ESM importers.
// "require" is deliberately absent so that dual packages hand their ESM build
// to ESM output.
var DefaultConditions = []string{"node", "import"}

// RequireConditions is the export condition priority for CommonJS importers.
var RequireConditions = []string{"node", "require"}

// DefaultMain is the entry point used when a package has neither exports nor main.
const DefaultMain = "index.js"

// ResolveOptions configures how conditional exports are resolved.
type ResolveOptions struct {
	// Conditions is the ordered list of conditions to try when resolving exports.
	// If nil, defaults to DefaultConditions. "default" is always tried last.
	Conditions []string
}

func (o *ResolveOptions) conditions() []string {
	if o != nil && len(o.Conditions) > 0 {
		return o.Conditions
	}
	return DefaultConditions
}

// PackageJSON represents the subset of package.json relevant for resolution.
type PackageJSON struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Main         string            `json:"main,omitempty"`
	Type         string            `json:"type,omitempty"`
	Exports      any               `json:"exports,omitempty"`
	Imports      any               `json:"imports,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Parse parses package.json data.
func Parse(data []byte) (*PackageJSON, error) {
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &pkg, nil
}

// ParseFile parses a package.json file.
func ParseFile(fsys fs.FileSystem, path string) (*PackageJSON, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pkg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pkg, nil
}

// IsModule reports whether .js files in this package scope are ES modules.
func (pkg *PackageJSON) IsModule() bool {
	return pkg != nil && pkg.Type == "module"
}

// HasExports reports whether the package declares an exports field.
func (pkg *PackageJSON) HasExports() bool {
	return pkg != nil && pkg.Exports != nil
}

// EntryPoint returns the legacy main entry as a "./"-relative path,
// falling back to DefaultMain.
func (pkg *PackageJSON) EntryPoint() string {
	main := strings.TrimSpace(pkg.Main)
	if main == "" {
		main = DefaultMain
	}
	main = path.Clean(strings.TrimPrefix(main, "./"))
	return "./" + main
}

// ResolveExport resolves a subpath export to its target.
// The subpath should be "." for the main export or "./subpath" for subpath exports.
// The target is returned as written in package.json, e.g. "./dist/index.js".
// Pass nil for opts to use DefaultConditions.
func (pkg *PackageJSON) ResolveExport(subpath string, opts *ResolveOptions) (string, error) {
	switch exports := pkg.Exports.(type) {
	case nil:
		return "", ErrNotExported
	case string, []any:
		if subpath != "." {
			return "", ErrNotExported
		}
		return resolveTarget(exports, "", false, opts)
	case map[string]any:
		subpaths, err := isSubpathMap(exports)
		if err != nil {
			return "", err
		}
		if !subpaths {
			if subpath != "." {
				return "", ErrNotExported
			}
			return resolveTarget(exports, "", false, opts)
		}
		return resolveMap(exports, subpath, opts)
	default:
		return "", ErrInvalidTarget
	}
}

// ResolveImport resolves a "#"-prefixed package import.
// Targets may be "./"-relative or bare package specifiers.
func (pkg *PackageJSON) ResolveImport(name string, opts *ResolveOptions) (string, error) {
	imports, ok := pkg.Imports.(map[string]any)
	if !ok || !strings.HasPrefix(name, "#") || name == "#" || strings.HasPrefix(name, "#/") {
		return "", ErrNotExported
	}
	return resolveMapWith(imports, name, true, opts)
}

// isSubpathMap reports whether every key of an exports map is a subpath.
// Mixing subpath keys and condition keys is a configuration error.
func isSubpathMap(exports map[string]any) (bool, error) {
	subpaths, conditions := 0, 0
	for key := range exports {
		if strings.HasPrefix(key, ".") {
			subpaths++
		} else {
			conditions++
		}
	}
	if subpaths > 0 && conditions > 0 {
		return false, fmt.Errorf("%w: exports mixes subpaths and conditions", ErrInvalidConfig)
	}
	return subpaths > 0, nil
}

func resolveMap(exports map[string]any, subpath string, opts *ResolveOptions) (string, error) {
	return resolveMapWith(exports, subpath, false, opts)
}

// resolveMapWith matches key exactly, then against single-"*" patterns,
// preferring the pattern with the longest prefix.
func resolveMapWith(entries map[string]any, key string, allowBare bool, opts *ResolveOptions) (string, error) {
	if value, ok := entries[key]; ok && !strings.Contains(key, "*") {
		return resolveTarget(value, "", allowBare, opts)
	}

	var patterns []string
	for pattern := range entries {
		if strings.Count(pattern, "*") == 1 {
			patterns = append(patterns, pattern)
		}
	}
	sort.Slice(patterns, func(i, j int) bool {
		return comparePatternKeys(patterns[i], patterns[j]) < 0
	})

	for _, pattern := range patterns {
		star := strings.Index(pattern, "*")
		prefix, suffix := pattern[:star], pattern[star+1:]
		if key == prefix || !strings.HasPrefix(key, prefix) {
			continue
		}
		if len(key) < len(prefix)+len(suffix) || !strings.HasSuffix(key, suffix) {
			continue
		}
		match := key[len(prefix) : len(key)-len(suffix)]
		return resolveTarget(entries[pattern], match, allowBare, opts)
	}

	return "", ErrNotExported
}

// comparePatternKeys orders pattern keys from most to least specific.
func comparePatternKeys(a, b string) int {
	aStar, bStar := strings.Index(a, "*"), strings.Index(b, "*")
	switch {
	case aStar > bStar:
		return -1
	case bStar > aStar:
		return 1
	case len(a) > len(b):
		return -1
	case len(b) > len(a):
		return 1
	}
	return strings.Compare(a, b)
}

// resolveTarget resolves one exports value: a string, a condition map,
// a fallback array or null. match replaces "*" in string targets.
func resolveTarget(value any, match string, allowBare bool, opts *ResolveOptions) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", ErrNotExported
	case string:
		return validateTarget(strings.ReplaceAll(v, "*", match), allowBare)
	case []any:
		if len(v) == 0 {
			return "", ErrNotExported
		}
		var lastErr error = ErrNotExported
		for _, item := range v {
			target, err := resolveTarget(item, match, allowBare, opts)
			if err == nil {
				return target, nil
			}
			if !errors.Is(err, ErrInvalidTarget) && !errors.Is(err, ErrNotExported) {
				return "", err
			}
			lastErr = err
		}
		return "", lastErr
	case map[string]any:
		for key := range v {
			if strings.HasPrefix(key, ".") {
				return "", fmt.Errorf("%w: condition map contains subpath %q", ErrInvalidConfig, key)
			}
		}
		for _, cond := range opts.conditions() {
			nested, ok := v[cond]
			if !ok {
				continue
			}
			target, err := resolveTarget(nested, match, allowBare, opts)
			if errors.Is(err, ErrNotExported) {
				continue
			}
			return target, err
		}
		if nested, ok := v["default"]; ok {
			return resolveTarget(nested, match, allowBare, opts)
		}
		return "", ErrNotExported
	default:
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, value)
	}
}

func validateTarget(target string, allowBare bool) (string, error) {
	if !strings.HasPrefix(target, "./") {
		if allowBare && target != "" && !strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "../") {
			return target, nil
		}
		return "", fmt.Errorf("%w: %q must start with \"./\"", ErrInvalidTarget, target)
	}
	for _, segment := range strings.Split(target[2:], "/") {
		if segment == ".." || segment == "node_modules" {
			return "", fmt.Errorf("%w: %q leaves the package", ErrInvalidTarget, target)
		}
	}
	return target, nil
}
