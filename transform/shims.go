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
	"strconv"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"bennypowers.dev/duet/cjs"
	"bennypowers.dev/duet/resolve"
	"bennypowers.dev/duet/syntax"
)

const importDefaultHelper = `function __importDefault(mod) { return mod && mod.__esModule ? mod.default : mod; }
`

const esmPathPrelude = `import { fileURLToPath as __duetFileURLToPath } from "node:url"; ` +
	`import { dirname as __duetDirname } from "node:path"; ` +
	`const __filename = __duetFileURLToPath(import.meta.url); ` +
	`const __dirname = __duetDirname(__filename); `

// cjsMetaReplacements map import.meta properties onto CommonJS globals.
var cjsMetaReplacements = map[string]string{
	"import.meta.url":      `require("node:url").pathToFileURL(__filename).href`,
	"import.meta.filename": "__filename",
	"import.meta.dirname":  "__dirname",
}

type interopResult struct {
	edits []edit
	// helper is set when the edits call __importDefault.
	helper bool
	// replacesStatement is set when the edits rewrite the whole statement,
	// specifier included.
	replacesStatement bool
}

// interop adapts an ES module import of a CommonJS module. Default imports
// go through __importDefault so that transpiled modules marked __esModule
// yield their default export. Named imports the module does not statically
// expose are destructured from module.exports when shims are enabled, and
// reported otherwise.
func (t *Transformer) interop(content string, imp syntax.Import, spec, sourceFile, outputFile string, bindings map[string]int) (interopResult, bool) {
	mod, err := t.resolver.Resolve(imp.Specifier, sourceFile)
	if err != nil || mod.Format != resolve.FormatCommonJS {
		return interopResult{}, false
	}

	var named []syntax.Binding
	for _, b := range imp.Named {
		if !b.TypeOnly {
			named = append(named, b)
		}
	}

	var missing []string
	if len(named) > 0 {
		exports, err := t.exports.GetExports(imp.Specifier, sourceFile)
		if err != nil {
			t.log.Warning("%s: could not read exports of %q: %v", outputFile, imp.Specifier, err)
			exports = cjs.Set{}
		}
		for _, b := range named {
			if b.Name != "default" && !exports.Has(b.Name) {
				missing = append(missing, b.Name)
			}
		}
	}

	if len(missing) > 0 && t.opts.Shims {
		return t.destructure(content, imp, spec, named, bindings), true
	}
	for _, name := range missing {
		t.log.Warning("%s: %v", outputFile, &cjs.ImportNotDefinedError{Specifier: imp.Specifier, Name: name})
	}

	if imp.Default == "" {
		return interopResult{}, false
	}
	local := imp.Default + "__cjs"
	return interopResult{
		edits: []edit{
			{imp.DefaultRange.Start, imp.DefaultRange.End, local},
			{imp.Statement.End, imp.Statement.End, fmt.Sprintf(" const %s = __importDefault(%s);", imp.Default, local)},
		},
		helper: true,
	}, true
}

// destructure replaces an import statement with a default import of the
// CommonJS module and destructures every named binding from it. The
// replacement keeps the statement's line count. bindings counts the
// generated names already declared in the file.
func (t *Transformer) destructure(content string, imp syntax.Import, spec string, named []syntax.Binding, bindings map[string]int) interopResult {
	quote := content[imp.Source.Start-1 : imp.Source.Start]
	local := cjsIdentifier(imp.Specifier)
	if imp.Default != "" {
		local = imp.Default + "__cjs"
	} else {
		if n := bindings[local]; n > 0 {
			local += strconv.Itoa(n)
		}
		bindings[cjsIdentifier(imp.Specifier)]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "import %s from %s%s%s;", local, quote, spec, quote)
	if imp.Default != "" {
		fmt.Fprintf(&b, " const %s = __importDefault(%s);", imp.Default, local)
	}
	fields := make([]string, 0, len(named))
	for _, n := range named {
		if n.Alias == n.Name {
			fields = append(fields, n.Name)
		} else {
			fields = append(fields, n.Name+": "+n.Alias)
		}
	}
	fmt.Fprintf(&b, " const { %s } = %s;", strings.Join(fields, ", "), local)

	original := content[imp.Statement.Start:imp.Statement.End]
	b.WriteString(strings.Repeat("\n", strings.Count(original, "\n")))

	return interopResult{
		edits:             []edit{{imp.Statement.Start, imp.Statement.End, b.String()}},
		helper:            imp.Default != "",
		replacesStatement: true,
	}
}

// cjsIdentifier derives a local binding name from a specifier.
func cjsIdentifier(specifier string) string {
	var b strings.Builder
	b.WriteString("__")
	for _, r := range specifier {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '$':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	b.WriteString("__cjs")
	return b.String()
}

// pathShims makes module-relative path idioms work in the other format.
func (t *Transformer) pathShims(f *syntax.File) []edit {
	if t.opts.BuildType == CommonJS {
		return cjsPathShims(f)
	}
	return esmPathShims(f)
}

func cjsPathShims(f *syntax.File) []edit {
	var edits []edit
	f.Walk(func(n *ts.Node) bool {
		if n.Kind() != "member_expression" {
			return true
		}
		for member, replacement := range cjsMetaReplacements {
			if f.IsMember(n, member) {
				edits = append(edits, edit{n.StartByte(), n.EndByte(), replacement})
				return false
			}
		}
		return true
	})
	return edits
}

func esmPathShims(f *syntax.File) []edit {
	used, declared := false, false
	f.Walk(func(n *ts.Node) bool {
		for _, name := range []string{"__dirname", "__filename"} {
			if !f.IsIdentifier(n, name) {
				continue
			}
			if parent := n.Parent(); parent != nil && parent.Kind() == "variable_declarator" {
				if id := parent.ChildByFieldName("name"); id != nil && id.StartByte() == n.StartByte() {
					declared = true
					continue
				}
			}
			used = true
		}
		return true
	})
	if !used || declared {
		return nil
	}

	// After a hashbang, on the same line as the first statement so that
	// source map lines are unchanged.
	var at uint
	if strings.HasPrefix(string(f.Source), "#!") {
		if nl := strings.IndexByte(string(f.Source), '\n'); nl >= 0 {
			at = uint(nl + 1)
		} else {
			at = uint(len(f.Source))
		}
	}
	return []edit{{at, at, esmPathPrelude}}
}
