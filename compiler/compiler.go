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

// Package compiler is duet's boundary to the TypeScript compiler.
//
// duet never type-checks or emits on its own. A [Compiler] parses project
// configuration and emits files, handing each one to a [WriteFileFunc] so the
// caller can rename and rewrite it before it reaches the disk.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// MinimumVersion is the oldest compiler that understands .mts and .cts.
const MinimumVersion = "4.7.0"

var minimumConstraint = semver.MustParse(MinimumVersion)

// ErrUnsupportedVersion is returned by [CheckVersion].
var ErrUnsupportedVersion = errors.New("unsupported TypeScript version")

// Diagnostic codes duet reports or filters.
const (
	// CodeImportMetaInCommonJS is reported for import.meta in CommonJS output.
	CodeImportMetaInCommonJS = 1343
	// CodeReferenceNotBuilt is reported when a referenced project's output is missing.
	CodeReferenceNotBuilt = 6305
	// CodeReferenceNotComposite is reported when a referenced project is not composite.
	CodeReferenceNotComposite = 6306
)

// Compiler-option overrides applied per output format.
var (
	ModuleOverrides = map[string]string{
		"module":           "ESNext",
		"moduleResolution": "Bundler",
	}
	CommonJSOverrides = map[string]string{
		"module":           "CommonJS",
		"moduleResolution": "Node10",
		"esModuleInterop":  "true",
	}
)

// WriteFileFunc receives every file the compiler emits. sourceFiles names the
// inputs the file was emitted from, when known.
type WriteFileFunc func(fileName, text string, writeBOM bool, sourceFiles []string) error

// EmitOptions configure one emit.
type EmitOptions struct {
	// Overrides replace compiler options for this emit only.
	Overrides map[string]string
	// IgnoreCodes drops diagnostics with these codes.
	IgnoreCodes []int
	// WriteFile is called once per emitted file. Required.
	WriteFile WriteFileFunc
}

// EmitResult reports an emit.
type EmitResult struct {
	Diagnostics  []Diagnostic
	EmittedFiles []string
}

// Compiler parses projects and emits them.
type Compiler interface {
	Version(ctx context.Context) (*semver.Version, error)
	ParseConfig(ctx context.Context, configPath string) (*ParsedConfig, error)
	Emit(ctx context.Context, cfg *ParsedConfig, opts EmitOptions) (*EmitResult, error)
}

// CheckVersion fails unless the compiler is at least [MinimumVersion].
func CheckVersion(ctx context.Context, c Compiler) (*semver.Version, error) {
	v, err := c.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading TypeScript version: %w", err)
	}
	if v.LessThan(minimumConstraint) {
		return v, fmt.Errorf("%w: %s (need >= %s)", ErrUnsupportedVersion, v, MinimumVersion)
	}
	return v, nil
}

// ParseVersion reads the output of `tsc --version`.
func ParseVersion(output string) (*semver.Version, error) {
	s := strings.TrimSpace(output)
	s = strings.TrimPrefix(s, "Version ")
	if i := strings.IndexAny(s, " \n"); i >= 0 {
		s = s[:i]
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("parse version %q: %w", strings.TrimSpace(output), err)
	}
	return v, nil
}

// VerifyReferences checks that every referenced project is composite and has
// already emitted its declarations, in any output format.
func VerifyReferences(sys System, refs []*ParsedConfig) []Diagnostic {
	var diags []Diagnostic
	for _, ref := range refs {
		if !ref.Options.Composite {
			diags = append(diags, Diagnostic{
				File:     ref.ConfigPath,
				Category: CategoryError,
				Code:     CodeReferenceNotComposite,
				Message:  fmt.Sprintf("Referenced project '%s' must have setting \"composite\": true.", ref.ConfigPath),
			})
			continue
		}
		for _, pair := range ref.DeclarationOutputs() {
			if declarationBuilt(sys, pair.Output) {
				continue
			}
			diags = append(diags, Diagnostic{
				Category: CategoryError,
				Code:     CodeReferenceNotBuilt,
				Message:  fmt.Sprintf("Output file '%s' has not been built from source file '%s'.", pair.Output, pair.Source),
			})
		}
	}
	return diags
}

// DeclarationVariants lists the names a declaration output may have after
// duet has renamed it for each format.
func DeclarationVariants(output string) []string {
	stem, suffix := trimSuffixes(output, []string{".d.ts", ".d.mts", ".d.cts"})
	if suffix == "" {
		return []string{output}
	}
	variants := []string{output}
	for _, ext := range []string{".d.ts", ".d.mts", ".d.cts"} {
		if ext != suffix {
			variants = append(variants, stem+ext)
		}
	}
	return variants
}

func declarationBuilt(sys System, output string) bool {
	return slices.ContainsFunc(DeclarationVariants(output), sys.FileExists)
}

func ignored(d Diagnostic, codes []int) bool {
	return slices.Contains(codes, d.Code)
}
