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
	"strings"

	"bennypowers.dev/duet/cjs"
	"bennypowers.dev/duet/fs"
	"bennypowers.dev/duet/internal/logging"
	"bennypowers.dev/duet/resolve"
	"bennypowers.dev/duet/syntax"
)

// Options configures a Transformer.
type Options struct {
	BuildType BuildType
	// Shims enables CommonJS named-import destructuring and the
	// __dirname/__filename/import.meta.url shims.
	Shims bool
	// Verbose reports specifiers that could not be resolved.
	Verbose bool
	// Exclude matches emitted files that are renamed but not rewritten.
	Exclude *Matcher
	Logger  logging.Logger
}

// Transformer rewrites the files the compiler emits for one build type.
// It is safe for concurrent use.
type Transformer struct {
	fs       fs.FileSystem
	resolver *resolve.Resolver
	exports  *cjs.Extractor
	opts     Options
	log      logging.Logger
}

// New creates a Transformer. The resolver's conditions are replaced with
// the build type's; its caches and redirects are kept. A nil resolver
// resolves directly against fsys.
func New(fsys fs.FileSystem, resolver *resolve.Resolver, opts Options) *Transformer {
	if opts.BuildType.Name == "" {
		opts.BuildType = Module
	}
	if resolver == nil {
		resolver = resolve.New(fsys)
	}
	resolver = resolver.WithConditions(opts.BuildType.Conditions())
	return &Transformer{
		fs:       fsys,
		resolver: resolver,
		exports:  cjs.NewExtractor(fsys, resolver),
		opts:     opts,
		log:      logging.OrDiscard(opts.Logger),
	}
}

// Transform rewrites one emitted file for bt with a throwaway Transformer.
func Transform(fsys fs.FileSystem, originalFileName, sourceFilePath, content string, bt BuildType, verbose bool) (string, error) {
	return New(fsys, nil, Options{BuildType: bt, Verbose: verbose}).Transform(originalFileName, sourceFilePath, content)
}

// BuildType returns the build type this Transformer emits.
func (t *Transformer) BuildType() BuildType {
	return t.opts.BuildType
}

// Output returns the renamed path and rewritten content of an emitted file.
func (t *Transformer) Output(originalFileName, sourceFilePath, content string) (name, text string, err error) {
	name = t.opts.BuildType.OutputName(originalFileName)
	if t.opts.Exclude.Match(originalFileName) {
		t.log.Debug("%s: excluded, writing unchanged", originalFileName)
		return name, content, nil
	}
	text, err = t.Transform(originalFileName, sourceFilePath, content)
	return name, text, err
}

// Transform rewrites the content of the file the compiler emitted as
// originalFileName from the source file at sourceFilePath. Specifiers are
// resolved from the source file, so sourceFilePath should name the
// TypeScript input; when empty, the output file is used instead.
func (t *Transformer) Transform(originalFileName, sourceFilePath, content string) (string, error) {
	if sourceFilePath == "" {
		sourceFilePath = originalFileName
	}
	switch Classify(originalFileName) {
	case JavaScript:
		return t.javascript(originalFileName, sourceFilePath, content)
	case Declaration:
		return t.declaration(originalFileName, sourceFilePath, content)
	case SourceMap, DeclarationMap:
		out, err := RewriteSourceMap(content, t.opts.BuildType)
		if err != nil {
			return "", fmt.Errorf("%s: %w", originalFileName, err)
		}
		return out, nil
	}
	return content, nil
}

func (t *Transformer) declaration(outputFile, sourceFile, content string) (string, error) {
	imports, err := syntax.ExtractImports([]byte(content))
	if err != nil {
		return "", fmt.Errorf("%s: %w", outputFile, err)
	}
	var edits []edit
	for _, imp := range imports {
		if spec, _, changed := t.rewriteSpecifier(imp.Specifier, outputFile, sourceFile); changed {
			edits = append(edits, edit{imp.Source.Start, imp.Source.End, spec})
		}
	}
	out, err := applyEdits(content, edits)
	if err != nil {
		return "", fmt.Errorf("%s: %w", outputFile, err)
	}
	return RewriteSourceMappingURL(out, t.opts.BuildType), nil
}

func (t *Transformer) javascript(outputFile, sourceFile, content string) (string, error) {
	f, err := syntax.Parse([]byte(content))
	if err != nil {
		return "", fmt.Errorf("%s: %w", outputFile, err)
	}
	defer f.Close()

	imports, err := f.Imports()
	if err != nil {
		return "", fmt.Errorf("%s: %w", outputFile, err)
	}

	var edits []edit
	helper := false
	bindings := map[string]int{}
	for _, imp := range imports {
		spec, _, changed := t.rewriteSpecifier(imp.Specifier, outputFile, sourceFile)

		if t.opts.BuildType == Module && imp.Kind == syntax.Static && !imp.TypeOnly {
			if interop, ok := t.interop(content, imp, spec, sourceFile, outputFile, bindings); ok {
				edits = append(edits, interop.edits...)
				helper = helper || interop.helper
				if !interop.replacesStatement && changed {
					edits = append(edits, edit{imp.Source.Start, imp.Source.End, spec})
				}
				continue
			}
		}
		if changed {
			edits = append(edits, edit{imp.Source.Start, imp.Source.End, spec})
		}
	}

	if t.opts.Shims {
		edits = append(edits, t.pathShims(f)...)
	}

	out, err := applyEdits(content, edits)
	if err != nil {
		return "", fmt.Errorf("%s: %w", outputFile, err)
	}
	out = RewriteSourceMappingURL(out, t.opts.BuildType)
	if helper {
		out = insertBeforeSourceMappingURL(out, importDefaultHelper)
	}
	return out, nil
}

// rewriteSpecifier maps a relative specifier onto the file it names in this
// build type's output. Resolution failures leave the specifier unchanged and
// are reported when verbose.
func (t *Transformer) rewriteSpecifier(specifier, outputFile, sourceFile string) (string, *resolve.ResolvedModule, bool) {
	if !isRelative(specifier) {
		return specifier, nil, false
	}
	mod, err := t.resolver.Resolve(specifier, sourceFile)
	if err != nil {
		if t.opts.Verbose {
			t.log.Warning("%s: leaving %q unchanged: %v", outputFile, specifier, err)
		}
		return specifier, nil, false
	}
	if isDeclarationFile(mod.Path) {
		return specifier, mod, false
	}

	// Output mirrors the source layout, so targets are relative to the
	// source file unless redirected into another project's output.
	from := filepath.Dir(sourceFile)
	if mod.Redirected {
		from = filepath.Dir(outputFile)
	}
	rel, err := filepath.Rel(from, mod.Path)
	if err != nil {
		if t.opts.Verbose {
			t.log.Warning("%s: leaving %q unchanged: %v", outputFile, specifier, err)
		}
		return specifier, mod, false
	}
	rel = t.emittedName(filepath.ToSlash(rel))
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	t.log.Debug("%s: %q -> %q", outputFile, specifier, rel)
	return rel, mod, rel != specifier
}

// emittedName maps a source file name to the name compiled output takes.
// .mts and .cts sources compile to .mjs and .cjs in every build.
func (t *Transformer) emittedName(name string) string {
	ext := filepath.Ext(name)
	switch ext {
	case ".ts", ".tsx", ".js", ".jsx":
		return strings.TrimSuffix(name, ext) + t.opts.BuildType.SourceExtension
	case ".mts":
		return strings.TrimSuffix(name, ext) + ".mjs"
	case ".cts":
		return strings.TrimSuffix(name, ext) + ".cjs"
	}
	return name
}

func isRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

func isDeclarationFile(p string) bool {
	for _, ext := range []string{".d.ts", ".d.mts", ".d.cts"} {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
