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
package compiler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"bennypowers.dev/duet/resolve"
)

// CompilerOptions holds the options duet reads, plus every option as parsed.
// Paths are absolute.
type CompilerOptions struct {
	RootDir             string         `json:"rootDir,omitempty"`
	OutDir              string         `json:"outDir,omitempty"`
	DeclarationDir      string         `json:"declarationDir,omitempty"`
	TSBuildInfoFile     string         `json:"tsBuildInfoFile,omitempty"`
	Declaration         bool           `json:"declaration,omitempty"`
	DeclarationMap      bool           `json:"declarationMap,omitempty"`
	SourceMap           bool           `json:"sourceMap,omitempty"`
	Composite           bool           `json:"composite,omitempty"`
	Incremental         bool           `json:"incremental,omitempty"`
	EmitDeclarationOnly bool           `json:"emitDeclarationOnly,omitempty"`
	Module              string         `json:"module,omitempty"`
	ModuleResolution    string         `json:"moduleResolution,omitempty"`
	Raw                 map[string]any `json:"raw,omitempty"`
}

// ProjectReference is a referenced project. Path is the absolute path of its
// config file; OriginalPath is the path as written.
type ProjectReference struct {
	Path         string `json:"path"`
	OriginalPath string `json:"originalPath"`
}

// ParsedConfig is a resolved project configuration.
type ParsedConfig struct {
	ConfigPath string              `json:"configPath"`
	Options    CompilerOptions     `json:"options"`
	FileNames  []string            `json:"fileNames"`
	References []*ProjectReference `json:"references,omitempty"`
	Errors     []Diagnostic        `json:"errors,omitempty"`
}

var pathOptions = []string{"rootDir", "outDir", "declarationDir", "tsBuildInfoFile"}

// ParseShowConfig reads the output of `tsc --showConfig` for the project at
// configPath. Relative paths are resolved against the config's directory.
func ParseShowConfig(configPath string, data []byte) (*ParsedConfig, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: compiler printed an invalid configuration", configPath)
	}
	doc := gjson.ParseBytes(data)
	dir := filepath.Dir(configPath)
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, filepath.FromSlash(p))
	}

	opts := doc.Get("compilerOptions")
	cfg := &ParsedConfig{
		ConfigPath: configPath,
		Options: CompilerOptions{
			RootDir:             abs(opts.Get("rootDir").String()),
			OutDir:              abs(opts.Get("outDir").String()),
			DeclarationDir:      abs(opts.Get("declarationDir").String()),
			TSBuildInfoFile:     abs(opts.Get("tsBuildInfoFile").String()),
			Declaration:         opts.Get("declaration").Bool(),
			DeclarationMap:      opts.Get("declarationMap").Bool(),
			SourceMap:           opts.Get("sourceMap").Bool(),
			Composite:           opts.Get("composite").Bool(),
			Incremental:         opts.Get("incremental").Bool(),
			EmitDeclarationOnly: opts.Get("emitDeclarationOnly").Bool(),
			Module:              opts.Get("module").String(),
			ModuleResolution:    opts.Get("moduleResolution").String(),
		},
	}
	if raw, ok := opts.Value().(map[string]any); ok {
		cfg.Options.Raw = raw
		for _, key := range pathOptions {
			if s, ok := raw[key].(string); ok {
				raw[key] = abs(s)
			}
		}
	}
	// composite implies declaration
	if cfg.Options.Composite && !opts.Get("declaration").Exists() {
		cfg.Options.Declaration = true
	}

	for _, f := range doc.Get("files").Array() {
		cfg.FileNames = append(cfg.FileNames, abs(f.String()))
	}
	for _, ref := range doc.Get("references").Array() {
		original := ref.Get("path").String()
		if original == "" {
			continue
		}
		p := abs(original)
		if !strings.HasSuffix(p, ".json") {
			p = filepath.Join(p, "tsconfig.json")
		}
		cfg.References = append(cfg.References, &ProjectReference{Path: p, OriginalPath: original})
	}
	return cfg, nil
}

// Dir is the directory containing the config file.
func (c *ParsedConfig) Dir() string {
	return filepath.Dir(c.ConfigPath)
}

// SourceRoot is rootDir, or the longest common directory of the project's
// non-declaration inputs when rootDir is unset.
func (c *ParsedConfig) SourceRoot() string {
	if c.Options.RootDir != "" {
		return c.Options.RootDir
	}
	var common []string
	seen := false
	for _, f := range c.FileNames {
		if isDeclaration(f) {
			continue
		}
		parts := strings.Split(filepath.Dir(f), string(filepath.Separator))
		if !seen {
			common, seen = parts, true
			continue
		}
		n := 0
		for n < len(common) && n < len(parts) && common[n] == parts[n] {
			n++
		}
		common = common[:n]
	}
	if !seen {
		return c.Dir()
	}
	root := strings.Join(common, string(filepath.Separator))
	if root == "" {
		return string(filepath.Separator)
	}
	return root
}

// OutputDir is where JavaScript is emitted: outDir, or beside the sources.
func (c *ParsedConfig) OutputDir() string {
	if c.Options.OutDir != "" {
		return c.Options.OutDir
	}
	return c.SourceRoot()
}

// DeclarationOutputDir is where declarations are emitted.
func (c *ParsedConfig) DeclarationOutputDir() string {
	if c.Options.DeclarationDir != "" {
		return c.Options.DeclarationDir
	}
	return c.OutputDir()
}

// OutputDirs lists the distinct directories the project emits into.
func (c *ParsedConfig) OutputDirs() []string {
	dirs := []string{c.OutputDir()}
	if d := c.DeclarationOutputDir(); d != dirs[0] {
		dirs = append(dirs, d)
	}
	return dirs
}

// Redirect maps this project's sources onto its output, for dependents that
// import across the reference boundary.
func (c *ParsedConfig) Redirect() resolve.Redirect {
	return resolve.Redirect{SourceRoot: c.SourceRoot(), OutDir: c.OutputDir()}
}

var outputSuffixes = []string{
	".d.ts.map", ".d.mts.map", ".d.cts.map",
	".d.ts", ".d.mts", ".d.cts",
	".js.map", ".mjs.map", ".cjs.map",
	".js", ".mjs", ".cjs", ".jsx",
}

var inputSuffixes = []string{".tsx", ".ts", ".mts", ".cts", ".jsx", ".js", ".mjs", ".cjs"}

// SourceFile returns the input file that output was emitted from, or "".
func (c *ParsedConfig) SourceFile(output string) string {
	stem, declaration := trimSuffixes(output, outputSuffixes)
	if stem == output {
		return ""
	}
	outDir := c.OutputDir()
	if strings.HasPrefix(declaration, ".d.") {
		outDir = c.DeclarationOutputDir()
	}
	rel, err := filepath.Rel(outDir, stem)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	want := filepath.Join(c.SourceRoot(), rel)
	for _, f := range c.FileNames {
		if isDeclaration(f) {
			continue
		}
		if s, _ := trimSuffixes(f, inputSuffixes); s == want {
			return f
		}
	}
	return ""
}

// OutputPair is an input file and one output emitted from it.
type OutputPair struct {
	Source string
	Output string
}

// DeclarationOutputs returns the declaration file the compiler emits for each
// non-declaration input.
func (c *ParsedConfig) DeclarationOutputs() []OutputPair {
	root, outDir := c.SourceRoot(), c.DeclarationOutputDir()
	var outs []OutputPair
	for _, f := range c.FileNames {
		if isDeclaration(f) {
			continue
		}
		stem, suffix := trimSuffixes(f, inputSuffixes)
		rel, err := filepath.Rel(root, stem)
		if err != nil {
			continue
		}
		ext := ".d.ts"
		switch suffix {
		case ".mts", ".mjs":
			ext = ".d.mts"
		case ".cts", ".cjs":
			ext = ".d.cts"
		}
		outs = append(outs, OutputPair{Source: f, Output: filepath.Join(outDir, rel) + ext})
	}
	return outs
}

func trimSuffixes(name string, suffixes []string) (string, string) {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return strings.TrimSuffix(name, s), s
		}
	}
	return name, ""
}

func isDeclaration(name string) bool {
	for _, s := range []string{".d.ts", ".d.mts", ".d.cts"} {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
