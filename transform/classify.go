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
package transform

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// FileKind classifies an emitted file.
type FileKind int

const (
	// Other files are written unchanged.
	Other FileKind = iota
	JavaScript
	SourceMap
	Declaration
	DeclarationMap
)

func (k FileKind) String() string {
	switch k {
	case JavaScript:
		return "javascript"
	case SourceMap:
		return "source map"
	case Declaration:
		return "declaration"
	case DeclarationMap:
		return "declaration map"
	}
	return "other"
}

// Order matters: declaration patterns shadow the JavaScript ones.
var kindPatterns = []struct {
	pattern string
	kind    FileKind
}{
	{"*.d.ts.map", DeclarationMap},
	{"*.d.ts", Declaration},
	{"*.js.map", SourceMap},
	{"*.js", JavaScript},
}

// Classify returns the kind of an emitted file.
func Classify(fileName string) FileKind {
	name := filepath.Base(fileName)
	for _, kp := range kindPatterns {
		if ok, _ := doublestar.Match(kp.pattern, name); ok {
			return kp.kind
		}
	}
	return Other
}

// Matcher reports whether emitted files match any of a set of doublestar
// patterns. Relative patterns match against paths relative to the base
// directory.
type Matcher struct {
	base     string
	patterns []string
}

// NewMatcher validates patterns and returns a Matcher rooted at base.
func NewMatcher(base string, patterns []string) (*Matcher, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return &Matcher{base: base, patterns: patterns}, nil
}

// Match reports whether fileName matches any pattern.
func (m *Matcher) Match(fileName string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	name := fileName
	if rel, err := filepath.Rel(m.base, fileName); err == nil && filepath.IsAbs(fileName) {
		name = rel
	}
	name = filepath.ToSlash(name)
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(filepath.ToSlash(p), name); ok {
			return true
		}
	}
	return false
}
