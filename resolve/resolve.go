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

// Package resolve implements Node.js-compatible module specifier resolution
// over a fs.FileSystem, including format classification of the result.
package resolve

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"net/url"
	"path/filepath"
	"strings"

	"bennypowers.dev/duet/fs"
	"bennypowers.dev/duet/packagejson"
)

// Format is the module system a resolved file is loaded with.
type Format string

const (
	// FormatUnknown marks files whose format the compiler decides,
	// such as TypeScript sources and JSON.
	FormatUnknown  Format = ""
	FormatModule   Format = "module"
	FormatCommonJS Format = "commonjs"
	FormatBuiltin  Format = "builtin"
)

// ResolvedModule is the outcome of a successful resolution.
type ResolvedModule struct {
	Specifier string
	// Path is the file the specifier points at, or "node:<name>" for builtins.
	Path   string
	Format Format
	// Redirected is set when Path was mapped from a referenced project's
	// sources to that project's output.
	Redirected bool
}

// IsBuiltin reports whether the module is a Node.js core module.
func (m *ResolvedModule) IsBuiltin() bool {
	return m.Format == FormatBuiltin
}

// sourceExtensions are appended, in order, to extensionless candidates.
var sourceExtensions = []string{".js", ".cjs", ".mjs", ".json", ".ts", ".tsx", ".d.ts"}

// tsSubstitutes maps an emitted JavaScript extension to the TypeScript
// sources it is compiled from.
var tsSubstitutes = map[string][]string{
	".js":  {".ts", ".tsx", ".d.ts"},
	".jsx": {".tsx"},
	".mjs": {".mts", ".d.mts"},
	".cjs": {".cts", ".d.cts"},
}

// Resolver resolves specifiers against a file system.
// A Resolver is immutable; the With* methods return modified copies.
type Resolver struct {
	fs         fs.FileSystem
	conditions []string
	packages   packagejson.Cache
	cache      *Cache
	redirects  []Redirect
}

// New creates a Resolver using the default ESM conditions.
func New(fsys fs.FileSystem) *Resolver {
	return &Resolver{
		fs:         fsys,
		conditions: packagejson.DefaultConditions,
	}
}

// Resolve resolves specifier from parentURL with a fresh, uncached Resolver.
// A nil conditions list selects packagejson.DefaultConditions.
func Resolve(fsys fs.FileSystem, specifier, parentURL string, conditions []string) (*ResolvedModule, error) {
	return New(fsys).WithConditions(conditions).Resolve(specifier, parentURL)
}

// WithConditions returns a Resolver matching exports against conditions.
func (r *Resolver) WithConditions(conditions []string) *Resolver {
	c := *r
	if len(conditions) == 0 {
		conditions = packagejson.DefaultConditions
	}
	c.conditions = append([]string(nil), conditions...)
	return &c
}

// WithPackageCache returns a Resolver that reads package.json files through cache.
func (r *Resolver) WithPackageCache(cache packagejson.Cache) *Resolver {
	c := *r
	c.packages = cache
	return &c
}

// WithCache returns a Resolver that memoizes results in cache.
func (r *Resolver) WithCache(cache *Cache) *Resolver {
	c := *r
	c.cache = cache
	return &c
}

// WithRedirects returns a Resolver that maps relative targets inside a
// referenced project's sources to that project's output.
func (r *Resolver) WithRedirects(redirects []Redirect) *Resolver {
	c := *r
	c.redirects = append([]Redirect(nil), redirects...)
	return &c
}

// Conditions returns the export conditions in preference order.
func (r *Resolver) Conditions() []string {
	return append([]string(nil), r.conditions...)
}

// Resolve resolves specifier as imported from parentURL, which is either a
// file: URL or a file system path. A parent ending in a separator names a
// directory; anything else names the importing file.
func (r *Resolver) Resolve(specifier, parentURL string) (*ResolvedModule, error) {
	dir, err := parentDir(parentURL)
	if err != nil {
		return nil, &Error{Kind: InvalidModuleSpecifier, Specifier: specifier, Parent: parentURL, Err: err}
	}

	if r.cache == nil {
		return r.resolveWithContext(specifier, dir, parentURL)
	}
	return r.cache.getOrResolve(dir, specifier, parentURL, r.conditions, func() (*ResolvedModule, error) {
		return r.resolveWithContext(specifier, dir, parentURL)
	})
}

func (r *Resolver) resolveWithContext(specifier, dir, parentURL string) (*ResolvedModule, error) {
	mod, err := r.resolve(specifier, dir)
	if err != nil {
		var rerr *Error
		if errors.As(err, &rerr) {
			if rerr.Specifier == "" {
				rerr.Specifier = specifier
			}
			if rerr.Parent == "" {
				rerr.Parent = parentURL
			}
		}
		return nil, err
	}
	return mod, nil
}

func (r *Resolver) resolve(specifier, dir string) (*ResolvedModule, error) {
	switch {
	case specifier == "":
		return nil, newError(InvalidModuleSpecifier, "", "", "empty specifier")

	case strings.HasPrefix(specifier, "node:"), IsBuiltin(specifier):
		if !IsBuiltin(specifier) {
			return nil, newError(ModuleNotFound, "", "", "unknown builtin module")
		}
		return &ResolvedModule{
			Specifier: specifier,
			Path:      "node:" + strings.TrimPrefix(specifier, "node:"),
			Format:    FormatBuiltin,
		}, nil

	case isRelative(specifier), strings.HasPrefix(specifier, "/"):
		target := filepath.FromSlash(specifier)
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		return r.resolveRelative(specifier, target, isDirectorySpecifier(specifier))

	case strings.HasPrefix(specifier, "file:"):
		u, err := url.Parse(specifier)
		if err != nil || u.Path == "" {
			return nil, newError(InvalidModuleSpecifier, "", "", "malformed file URL")
		}
		return r.resolveRelative(specifier, filepath.FromSlash(u.Path), strings.HasSuffix(u.Path, "/"))

	case hasScheme(specifier):
		return nil, newError(InvalidModuleSpecifier, "", "", "unsupported URL scheme")

	case strings.HasPrefix(specifier, "#"):
		return r.resolveImports(specifier, dir)

	default:
		return r.resolvePackage(specifier, dir)
	}
}

func (r *Resolver) resolveRelative(specifier, target string, dirOnly bool) (*ResolvedModule, error) {
	p, err := r.resolveFile(target, dirOnly)
	if err != nil {
		return nil, err
	}
	format, err := r.Format(p)
	if err != nil {
		return nil, err
	}
	mod := &ResolvedModule{Specifier: specifier, Path: p, Format: format}
	for _, redirect := range r.redirects {
		if out, ok := redirect.Apply(p); ok {
			mod.Path = out
			mod.Redirected = true
			break
		}
	}
	return mod, nil
}

// resolveFile probes candidate as-is, with each source extension appended,
// with its TypeScript source extension substituted, and finally as a
// directory containing an index file. The first existing file wins.
func (r *Resolver) resolveFile(candidate string, dirOnly bool) (string, error) {
	if !dirOnly {
		if fs.IsFile(r.fs, candidate) {
			return candidate, nil
		}
		for _, ext := range sourceExtensions {
			if fs.IsFile(r.fs, candidate+ext) {
				return candidate + ext, nil
			}
		}
		ext := filepath.Ext(candidate)
		stem := strings.TrimSuffix(candidate, ext)
		for _, sub := range tsSubstitutes[ext] {
			if fs.IsFile(r.fs, stem+sub) {
				return stem + sub, nil
			}
		}
	}

	if fs.IsDir(r.fs, candidate) {
		index := filepath.Join(candidate, "index")
		for _, ext := range sourceExtensions {
			if fs.IsFile(r.fs, index+ext) {
				return index + ext, nil
			}
		}
		return "", newError(UnsupportedDirectoryImport, "", "", fmt.Sprintf("directory %s has no index file", candidate))
	}

	return "", newError(ModuleNotFound, "", "", fmt.Sprintf("no file at %s", candidate))
}

func (r *Resolver) resolvePackage(specifier, dir string) (*ResolvedModule, error) {
	name, subpath, err := parsePackageName(specifier)
	if err != nil {
		return nil, err
	}

	pkgPath, self, err := packagejson.Nearest(r.fs, r.packages, dir)
	if err != nil {
		return nil, packageError(err, pkgPath, subpath)
	}
	if self != nil && self.Name == name && self.HasExports() {
		return r.resolveExports(specifier, filepath.Dir(pkgPath), self, subpath)
	}

	for current := dir; ; {
		if filepath.Base(current) != "node_modules" {
			pkgDir := filepath.Join(current, "node_modules", filepath.FromSlash(name))
			if fs.IsDir(r.fs, pkgDir) {
				return r.resolvePackageDir(specifier, pkgDir, subpath)
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return nil, newError(ModuleNotFound, "", "", fmt.Sprintf("package %s not found in any node_modules above %s", name, dir))
}

func (r *Resolver) resolvePackageDir(specifier, pkgDir, subpath string) (*ResolvedModule, error) {
	pkgPath := filepath.Join(pkgDir, "package.json")
	pkg, err := packagejson.Load(r.fs, r.packages, pkgPath)
	if err != nil {
		if !errors.Is(err, iofs.ErrNotExist) {
			return nil, packageError(err, pkgPath, subpath)
		}
		pkg = nil
	}

	if pkg.HasExports() {
		return r.resolveExports(specifier, pkgDir, pkg, subpath)
	}

	var p string
	if subpath == "." {
		p, err = r.legacyMain(pkgDir, pkg)
	} else {
		p, err = r.resolveFile(filepath.Join(pkgDir, filepath.FromSlash(subpath)), false)
	}
	if err != nil {
		return nil, err
	}
	return r.module(specifier, p)
}

// legacyMain resolves a package without exports through main, falling back
// to index.js next to package.json.
func (r *Resolver) legacyMain(pkgDir string, pkg *packagejson.PackageJSON) (string, error) {
	if pkg != nil && strings.TrimSpace(pkg.Main) != "" {
		if p, err := r.resolveFile(filepath.Join(pkgDir, filepath.FromSlash(pkg.EntryPoint())), false); err == nil {
			return p, nil
		}
	}
	p, err := r.resolveFile(filepath.Join(pkgDir, packagejson.DefaultMain), false)
	if err != nil {
		return "", newError(ModuleNotFound, "", "", fmt.Sprintf("package at %s has no resolvable main entry", pkgDir))
	}
	return p, nil
}

func (r *Resolver) resolveExports(specifier, pkgDir string, pkg *packagejson.PackageJSON, subpath string) (*ResolvedModule, error) {
	pkgPath := filepath.Join(pkgDir, "package.json")
	target, err := pkg.ResolveExport(subpath, &packagejson.ResolveOptions{Conditions: r.conditions})
	if err != nil {
		return nil, packageError(err, pkgPath, subpath)
	}
	p, err := r.exactTarget(pkgDir, target)
	if err != nil {
		return nil, err
	}
	return r.module(specifier, p)
}

func (r *Resolver) resolveImports(specifier, dir string) (*ResolvedModule, error) {
	pkgPath, pkg, err := packagejson.Nearest(r.fs, r.packages, dir)
	if err != nil {
		return nil, packageError(err, pkgPath, specifier)
	}
	if pkg == nil {
		return nil, newError(PackagePathNotExported, "", "", "no package.json declares imports")
	}
	target, err := pkg.ResolveImport(specifier, &packagejson.ResolveOptions{Conditions: r.conditions})
	if err != nil {
		return nil, packageError(err, pkgPath, specifier)
	}

	pkgDir := filepath.Dir(pkgPath)
	if !strings.HasPrefix(target, "./") {
		mod, err := r.resolve(target, pkgDir)
		if err != nil {
			return nil, err
		}
		mod.Specifier = specifier
		return mod, nil
	}
	p, err := r.exactTarget(pkgDir, target)
	if err != nil {
		return nil, err
	}
	return r.module(specifier, p)
}

// exactTarget checks an exports or imports target. Targets name files
// exactly; no extension or index probing applies.
func (r *Resolver) exactTarget(pkgDir, target string) (string, error) {
	p := filepath.Join(pkgDir, filepath.FromSlash(target))
	switch {
	case fs.IsFile(r.fs, p):
		return p, nil
	case fs.IsDir(r.fs, p):
		return "", newError(UnsupportedDirectoryImport, "", "", fmt.Sprintf("package target %s is a directory", target))
	}
	return "", newError(ModuleNotFound, "", "", fmt.Sprintf("package target %s does not exist", p))
}

func (r *Resolver) module(specifier, p string) (*ResolvedModule, error) {
	format, err := r.Format(p)
	if err != nil {
		return nil, err
	}
	return &ResolvedModule{Specifier: specifier, Path: p, Format: format}, nil
}

// Format classifies a file by extension, consulting the type field of the
// nearest package.json for .js and extensionless files.
func (r *Resolver) Format(p string) (Format, error) {
	if strings.HasPrefix(p, "node:") {
		return FormatBuiltin, nil
	}
	switch filepath.Ext(p) {
	case ".mjs":
		return FormatModule, nil
	case ".cjs":
		return FormatCommonJS, nil
	case ".js", "":
		pkgPath, pkg, err := packagejson.Nearest(r.fs, r.packages, filepath.Dir(p))
		if err != nil {
			return FormatUnknown, packageError(err, pkgPath, "")
		}
		if pkg.IsModule() {
			return FormatModule, nil
		}
		return FormatCommonJS, nil
	}
	return FormatUnknown, nil
}

func packageError(err error, pkgPath, subpath string) error {
	switch {
	case errors.Is(err, packagejson.ErrNotExported):
		return &Error{Kind: PackagePathNotExported, Detail: fmt.Sprintf("%s is not exported by %s", subpath, pkgPath)}
	case errors.Is(err, packagejson.ErrInvalidTarget):
		return &Error{Kind: InvalidPackageTarget, Detail: pkgPath, Err: err}
	case errors.Is(err, packagejson.ErrInvalidConfig):
		return &Error{Kind: InvalidPackageConfiguration, Detail: pkgPath, Err: err}
	}
	return &Error{Kind: InvalidPackageConfiguration, Detail: pkgPath, Err: err}
}

// parsePackageName splits a bare specifier into its package name and a
// "./"-prefixed subpath, "." for the package root.
func parsePackageName(specifier string) (name, subpath string, err error) {
	parts := strings.SplitN(specifier, "/", 3)
	name = parts[0]
	rest := parts[1:]
	if strings.HasPrefix(specifier, "@") {
		if len(parts) < 2 || parts[1] == "" || parts[0] == "@" {
			return "", "", newError(InvalidModuleSpecifier, "", "", "scoped package name needs a scope and a name")
		}
		name = parts[0] + "/" + parts[1]
		rest = parts[2:]
	}
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `\%`) {
		return "", "", newError(InvalidModuleSpecifier, "", "", "invalid package name")
	}

	subpath = "."
	if len(rest) > 0 {
		if rest[0] == "" && len(rest) == 1 {
			return name, ".", nil
		}
		subpath = "./" + strings.Join(rest, "/")
	}
	return name, subpath, nil
}

func isRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

func isDirectorySpecifier(specifier string) bool {
	return specifier == "." || specifier == ".." || strings.HasSuffix(specifier, "/")
}

// hasScheme reports whether specifier is a URL with a scheme longer than one
// character, so Windows drive letters are not mistaken for schemes.
func hasScheme(specifier string) bool {
	u, err := url.Parse(specifier)
	return err == nil && len(u.Scheme) > 1
}

func parentDir(parentURL string) (string, error) {
	if parentURL == "" {
		return "", errors.New("empty parent URL")
	}
	p := parentURL
	if strings.HasPrefix(parentURL, "file:") {
		u, err := url.Parse(parentURL)
		if err != nil {
			return "", fmt.Errorf("parsing parent URL: %w", err)
		}
		if u.Path == "" {
			return "", fmt.Errorf("parent URL %q has no path", parentURL)
		}
		p = filepath.FromSlash(u.Path)
	}
	isDir := strings.HasSuffix(p, "/") || strings.HasSuffix(p, string(filepath.Separator))
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if isDir {
		return abs, nil
	}
	return filepath.Dir(abs), nil
}
