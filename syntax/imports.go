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
package syntax

import (
	"sort"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// Kind distinguishes the syntactic forms that reference a module.
type Kind int

const (
	// Static is `import ... from "x"` or `import "x"`.
	Static Kind = iota
	// ReExport is `export ... from "x"`.
	ReExport
	// Dynamic is `import("x")`, in expressions and in type positions.
	Dynamic
	// Require is `require("x")`.
	Require
	// ImportEquals is `import x = require("x")`.
	ImportEquals
)

func (k Kind) String() string {
	switch k {
	case Static:
		return "import"
	case ReExport:
		return "export"
	case Dynamic:
		return "dynamic import"
	case Require:
		return "require"
	case ImportEquals:
		return "import require"
	}
	return "unknown"
}

// Range is a half-open byte range into the parsed source.
type Range struct {
	Start uint
	End   uint
}

// Binding is one entry of a named import list, `{ Name as Alias }`.
type Binding struct {
	Name     string
	Alias    string
	TypeOnly bool
}

// Import is one module reference found in a file.
type Import struct {
	Specifier string
	Kind      Kind
	// Source covers the specifier text, quotes excluded.
	Source Range
	// Statement covers the enclosing statement or call expression.
	Statement Range
	// Line is 1-indexed.
	Line     int
	TypeOnly bool

	Default      string
	DefaultRange Range
	Namespace    string
	Named        []Binding
}

// ExtractImports parses JavaScript/TypeScript content and extracts every
// module reference in source order.
func ExtractImports(content []byte) ([]Import, error) {
	f, err := Parse(content)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Imports()
}

// Imports returns every module reference in the file, in source order.
func (f *File) Imports() ([]Import, error) {
	qm, err := GetQueryManager()
	if err != nil {
		return nil, err
	}
	query, err := qm.Query("imports")
	if err != nil {
		return nil, err
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	var imports []Import
	seen := make(map[uint]bool)
	captureNames := query.CaptureNames()
	matches := cursor.Matches(query, f.Root(), f.Source)

	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, capture := range match.Captures {
			node := capture.Node
			if seen[node.StartByte()] {
				continue
			}
			var imp Import
			switch captureNames[capture.Index] {
			case "import.source":
				imp = f.statementImport(&node, Static)
			case "export.source":
				imp = f.statementImport(&node, ReExport)
			case "dynamic.source":
				imp = f.callImport(&node, Dynamic)
			default:
				continue
			}
			seen[node.StartByte()] = true
			imports = append(imports, imp)
		}
	}

	// require() calls, import-equals declarations and import types that the
	// grammar does not surface as call expressions.
	f.Walk(func(n *ts.Node) bool {
		if n.Kind() != "string" {
			return true
		}
		if !seen[n.StartByte()] {
			if imp, ok := f.classifyString(n); ok {
				seen[n.StartByte()] = true
				imports = append(imports, imp)
			}
		}
		return false
	})

	sort.SliceStable(imports, func(i, j int) bool {
		return imports[i].Source.Start < imports[j].Source.Start
	})
	return imports, nil
}

func (f *File) baseImport(str *ts.Node, kind Kind) Import {
	value, _ := f.StringValue(str)
	return Import{
		Specifier: value,
		Kind:      kind,
		Source:    Range{Start: str.StartByte() + 1, End: str.EndByte() - 1},
		Line:      int(str.StartPosition().Row) + 1,
	}
}

func (f *File) statementImport(str *ts.Node, kind Kind) Import {
	imp := f.baseImport(str, kind)
	stmt := str.Parent()
	if stmt == nil {
		return imp
	}
	imp.Statement = Range{Start: stmt.StartByte(), End: stmt.EndByte()}
	imp.TypeOnly = hasTypeKeyword(stmt)
	if kind == Static {
		f.readImportClause(stmt, &imp)
	}
	return imp
}

func (f *File) callImport(str *ts.Node, kind Kind) Import {
	imp := f.baseImport(str, kind)
	if args := str.Parent(); args != nil {
		if call := args.Parent(); call != nil && call.Kind() == "call_expression" {
			imp.Statement = Range{Start: call.StartByte(), End: call.EndByte()}
		}
	}
	return imp
}

func (f *File) classifyString(str *ts.Node) (Import, bool) {
	parent := str.Parent()
	if parent == nil {
		return Import{}, false
	}

	switch parent.Kind() {
	case "import_require_clause":
		imp := f.baseImport(str, ImportEquals)
		if stmt := parent.Parent(); stmt != nil {
			imp.Statement = Range{Start: stmt.StartByte(), End: stmt.EndByte()}
		}
		for i := range parent.NamedChildCount() {
			if child := parent.NamedChild(i); child.Kind() == "identifier" {
				imp.Default = f.Text(child)
				imp.DefaultRange = Range{Start: child.StartByte(), End: child.EndByte()}
				break
			}
		}
		return imp, true

	case "arguments":
		if first := parent.NamedChild(0); first == nil || first.StartByte() != str.StartByte() {
			return Import{}, false
		}
		callee := parent.PrevSibling()
		switch {
		case callee != nil && callee.Kind() == "import":
			return f.callImport(str, Dynamic), true
		case f.IsIdentifier(callee, "require"):
			return f.callImport(str, Require), true
		}
		return Import{}, false
	}

	// `import("x").T` in a type position has no call expression in the
	// grammar, so fall back to the surrounding text.
	if f.precededByImportCall(str.StartByte()) {
		return f.baseImport(str, Dynamic), true
	}
	return Import{}, false
}

// precededByImportCall reports whether the text before offset reads
// `import(`, allowing whitespace around the parenthesis.
func (f *File) precededByImportCall(offset uint) bool {
	i := skipSpaceBack(f.Source, int(offset))
	if i == 0 || f.Source[i-1] != '(' {
		return false
	}
	i = skipSpaceBack(f.Source, i-1)
	const keyword = "import"
	if i < len(keyword) || string(f.Source[i-len(keyword):i]) != keyword {
		return false
	}
	i -= len(keyword)
	return i == 0 || !isIdentifierByte(f.Source[i-1])
}

func skipSpaceBack(src []byte, i int) int {
	for i > 0 {
		switch src[i-1] {
		case ' ', '\t', '\n', '\r':
			i--
		default:
			return i
		}
	}
	return i
}

func isIdentifierByte(b byte) bool {
	return b == '_' || b == '$' || b == '.' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

func (f *File) readImportClause(stmt *ts.Node, imp *Import) {
	for i := range stmt.NamedChildCount() {
		clause := stmt.NamedChild(i)
		if clause.Kind() != "import_clause" {
			continue
		}
		for j := range clause.NamedChildCount() {
			part := clause.NamedChild(j)
			switch part.Kind() {
			case "identifier":
				imp.Default = f.Text(part)
				imp.DefaultRange = Range{Start: part.StartByte(), End: part.EndByte()}
			case "namespace_import":
				for k := range part.NamedChildCount() {
					if id := part.NamedChild(k); id.Kind() == "identifier" {
						imp.Namespace = f.Text(id)
					}
				}
			case "named_imports":
				for k := range part.NamedChildCount() {
					spec := part.NamedChild(k)
					if spec.Kind() != "import_specifier" {
						continue
					}
					name := spec.ChildByFieldName("name")
					if name == nil {
						continue
					}
					binding := Binding{Name: f.Text(name), TypeOnly: hasTypeKeyword(spec)}
					binding.Alias = binding.Name
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						binding.Alias = f.Text(alias)
					}
					imp.Named = append(imp.Named, binding)
				}
			}
		}
	}
}

// hasTypeKeyword reports whether n has an anonymous `type` child, as in
// `import type { A } from "a"` or `import { type A } from "a"`.
func hasTypeKeyword(n *ts.Node) bool {
	for i := range n.ChildCount() {
		if child := n.Child(i); child != nil && !child.IsNamed() && child.Kind() == "type" {
			return true
		}
	}
	return false
}
