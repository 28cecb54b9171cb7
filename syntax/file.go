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
	"errors"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// ErrParse is returned when tree-sitter produces no tree.
var ErrParse = errors.New("failed to parse content")

// File is a parsed JavaScript or TypeScript source. Close releases the tree.
type File struct {
	Source []byte
	tree   *ts.Tree
}

// Parse parses source with the TypeScript grammar, which also accepts
// emitted JavaScript and declaration files.
func Parse(source []byte) (*File, error) {
	parser := getParser()
	defer putParser(parser)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, ErrParse
	}
	return &File{Source: source, tree: tree}, nil
}

// Close releases the syntax tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// Root returns the program node.
func (f *File) Root() *ts.Node {
	return f.tree.RootNode()
}

// Text returns the source text of n.
func (f *File) Text(n *ts.Node) string {
	return n.Utf8Text(f.Source)
}

// Walk visits every node depth-first in source order. Returning false from
// visit skips the node's children.
func (f *File) Walk(visit func(n *ts.Node) bool) {
	cursor := f.tree.RootNode().Walk()
	defer cursor.Close()

	for {
		if visit(cursor.Node()) && cursor.GotoFirstChild() {
			continue
		}
		for !cursor.GotoNextSibling() {
			if !cursor.GotoParent() {
				return
			}
		}
	}
}

// StringValue returns the contents of a string literal node without quotes.
func (f *File) StringValue(n *ts.Node) (string, bool) {
	if n == nil || n.Kind() != "string" {
		return "", false
	}
	text := f.Text(n)
	if len(text) < 2 {
		return "", false
	}
	return text[1 : len(text)-1], true
}

// IsIdentifier reports whether n is an identifier spelled name.
func (f *File) IsIdentifier(n *ts.Node, name string) bool {
	return n != nil && n.Kind() == "identifier" && f.Text(n) == name
}

// IsMember reports whether n is a member expression spelling path, such as
// "module.exports" or "import.meta.url", ignoring whitespace.
func (f *File) IsMember(n *ts.Node, path string) bool {
	if n == nil || n.Kind() != "member_expression" {
		return false
	}
	return strings.Join(strings.Fields(f.Text(n)), "") == path
}

// CallArgument returns the index-th named argument of a call expression.
func CallArgument(call *ts.Node, index uint) *ts.Node {
	if call == nil || call.Kind() != "call_expression" {
		return nil
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() <= index {
		return nil
	}
	return args.NamedChild(index)
}
