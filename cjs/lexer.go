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

// Package cjs statically detects the named exports of CommonJS modules.
//
// The lexer state (tree-sitter grammar and parser pool) is process-wide.
// EnsureInitialized loads it once; it lives until the process exits and
// needs no teardown. Every entry point calls EnsureInitialized itself.
package cjs

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"

	"bennypowers.dev/duet/syntax"
)

var (
	initOnce sync.Once
	initErr  error
)

// EnsureInitialized loads the lexer. It is idempotent and safe for
// concurrent use; the first failure is returned to every caller.
func EnsureInitialized() error {
	initOnce.Do(func() {
		if _, err := syntax.GetQueryManager(); err != nil {
			initErr = fmt.Errorf("initializing CommonJS lexer: %w", err)
			return
		}
		f, err := syntax.Parse([]byte("module.exports = {};"))
		if err != nil {
			initErr = fmt.Errorf("initializing CommonJS lexer: %w", err)
			return
		}
		f.Close()
	})
	return initErr
}

// Analysis is the static view of a CommonJS module.
type Analysis struct {
	// Exports are names assigned onto exports or module.exports.
	Exports []string
	// Reexports are specifiers whose exports are spread into this module.
	Reexports []string
}

// Analyze lexes a CommonJS module.
func Analyze(source []byte) (*Analysis, error) {
	if err := EnsureInitialized(); err != nil {
		return nil, err
	}
	f, err := syntax.Parse(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	l := &lexer{file: f, exports: make(Set)}
	f.Walk(l.visit)

	return &Analysis{
		Exports:   l.exports.Sorted(),
		Reexports: l.reexports,
	}, nil
}

type lexer struct {
	file      *syntax.File
	exports   Set
	reexports []string
}

func (l *lexer) visit(n *ts.Node) bool {
	switch n.Kind() {
	case "assignment_expression":
		l.assignment(n)
	case "call_expression":
		l.call(n)
	}
	return true
}

func (l *lexer) assignment(n *ts.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil {
		return
	}

	if l.isModuleExports(left) {
		l.moduleExportsValue(right)
		return
	}

	switch left.Kind() {
	case "member_expression":
		if l.isExportsObject(left.ChildByFieldName("object")) {
			if prop := left.ChildByFieldName("property"); prop != nil {
				l.exports.Add(l.file.Text(prop))
			}
		}
	case "subscript_expression":
		if l.isExportsObject(left.ChildByFieldName("object")) {
			if name, ok := l.file.StringValue(left.ChildByFieldName("index")); ok {
				l.exports.Add(name)
			}
		}
	}
}

// moduleExportsValue handles `module.exports = value`.
func (l *lexer) moduleExportsValue(value *ts.Node) {
	if specifier, ok := l.requireSpecifier(value); ok {
		l.reexports = append(l.reexports, specifier)
		return
	}
	if value.Kind() != "object" {
		return
	}
	for i := range value.NamedChildCount() {
		member := value.NamedChild(i)
		switch member.Kind() {
		case "shorthand_property_identifier":
			l.exports.Add(l.file.Text(member))
		case "pair":
			l.addKey(member.ChildByFieldName("key"))
		case "method_definition":
			l.addKey(member.ChildByFieldName("name"))
		case "spread_element":
			if member.NamedChildCount() > 0 {
				if specifier, ok := l.requireSpecifier(member.NamedChild(0)); ok {
					l.reexports = append(l.reexports, specifier)
				}
			}
		}
	}
}

func (l *lexer) addKey(key *ts.Node) {
	if key == nil {
		return
	}
	switch key.Kind() {
	case "property_identifier", "identifier":
		l.exports.Add(l.file.Text(key))
	case "string":
		if name, ok := l.file.StringValue(key); ok {
			l.exports.Add(name)
		}
	}
}

func (l *lexer) call(n *ts.Node) {
	callee := n.ChildByFieldName("function")
	if callee == nil {
		return
	}

	// Object.defineProperty(exports, "name", descriptor)
	if l.file.IsMember(callee, "Object.defineProperty") {
		if l.isExportsObject(syntax.CallArgument(n, 0)) {
			if name, ok := l.file.StringValue(syntax.CallArgument(n, 1)); ok {
				l.exports.Add(name)
			}
		}
		return
	}

	// __exportStar(require("x"), exports), tslib.__exportStar(...),
	// __export(require("x")) and esbuild's __reExport(exports, require("x")).
	if isReexportHelper(l.helperName(callee)) {
		args := n.ChildByFieldName("arguments")
		if args == nil {
			return
		}
		for i := range args.NamedChildCount() {
			if specifier, ok := l.requireSpecifier(args.NamedChild(i)); ok {
				l.reexports = append(l.reexports, specifier)
			}
		}
	}
}

func (l *lexer) helperName(callee *ts.Node) string {
	switch callee.Kind() {
	case "identifier":
		return l.file.Text(callee)
	case "member_expression":
		if prop := callee.ChildByFieldName("property"); prop != nil {
			return l.file.Text(prop)
		}
	}
	return ""
}

func isReexportHelper(name string) bool {
	return slices.Contains([]string{"__exportStar", "__export", "__reExport"}, name)
}

// requireSpecifier matches `require("x")`.
func (l *lexer) requireSpecifier(n *ts.Node) (string, bool) {
	if n == nil || n.Kind() != "call_expression" {
		return "", false
	}
	if !l.file.IsIdentifier(n.ChildByFieldName("function"), "require") {
		return "", false
	}
	return l.file.StringValue(syntax.CallArgument(n, 0))
}

func (l *lexer) isModuleExports(n *ts.Node) bool {
	return l.file.IsMember(n, "module.exports")
}

func (l *lexer) isExportsObject(n *ts.Node) bool {
	return l.file.IsIdentifier(n, "exports") || l.isModuleExports(n)
}

// Set is a set of export names.
type Set map[string]struct{}

// Add inserts name, ignoring empty names.
func (s Set) Add(name string) {
	if name = strings.TrimSpace(name); name != "" {
		s[name] = struct{}{}
	}
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
