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

// Package transform rewrites compiler output for one target module format.
package transform

import (
	"fmt"
	"strings"

	"bennypowers.dev/duet/packagejson"
	"bennypowers.dev/duet/resolve"
)

// BuildType is an output module format and the file extensions it emits.
type BuildType struct {
	Name                    string
	SourceExtension         string
	DeclarationExtension    string
	DeclarationMapExtension string
}

var (
	// Module emits ES modules.
	Module = BuildType{
		Name:                    "module",
		SourceExtension:         ".mjs",
		DeclarationExtension:    ".d.mts",
		DeclarationMapExtension: ".d.mts.map",
	}
	// CommonJS emits CommonJS modules.
	CommonJS = BuildType{
		Name:                    "commonjs",
		SourceExtension:         ".cjs",
		DeclarationExtension:    ".d.cts",
		DeclarationMapExtension: ".d.cts.map",
	}
)

// BuildTypes lists every supported format in build order.
var BuildTypes = []BuildType{Module, CommonJS}

// ParseBuildType returns the build type called name.
func ParseBuildType(name string) (BuildType, error) {
	for _, bt := range BuildTypes {
		if bt.Name == name {
			return bt, nil
		}
	}
	return BuildType{}, fmt.Errorf("unknown format %q (expected module or commonjs)", name)
}

func (bt BuildType) String() string {
	return bt.Name
}

// Format is the format node loads this build type's output as.
func (bt BuildType) Format() resolve.Format {
	if bt == CommonJS {
		return resolve.FormatCommonJS
	}
	return resolve.FormatModule
}

// Conditions are the package exports conditions this build type's output
// is resolved under at runtime.
func (bt BuildType) Conditions() []string {
	if bt == CommonJS {
		return packagejson.RequireConditions
	}
	return packagejson.DefaultConditions
}

// OutputName maps an emitted file name to this build type's extensions.
func (bt BuildType) OutputName(fileName string) string {
	return RemapExtension(fileName, bt.SourceExtension, bt.DeclarationExtension)
}

// OriginalName inverts OutputName.
func (bt BuildType) OriginalName(fileName string) string {
	switch {
	case strings.HasSuffix(fileName, bt.DeclarationMapExtension):
		return strings.TrimSuffix(fileName, bt.DeclarationMapExtension) + ".d.ts.map"
	case strings.HasSuffix(fileName, bt.DeclarationExtension):
		return strings.TrimSuffix(fileName, bt.DeclarationExtension) + ".d.ts"
	case strings.HasSuffix(fileName, bt.SourceExtension+".map"):
		return strings.TrimSuffix(fileName, bt.SourceExtension+".map") + ".js.map"
	case strings.HasSuffix(fileName, bt.SourceExtension):
		return strings.TrimSuffix(fileName, bt.SourceExtension) + ".js"
	}
	return fileName
}

// RemapExtension renames an emitted file for a build type. Declarations and
// their maps take declarationExtension; JavaScript and its maps take
// sourceExtension. Other names are returned unchanged.
func RemapExtension(fileName, sourceExtension, declarationExtension string) string {
	switch {
	case strings.HasSuffix(fileName, ".d.ts.map"):
		return strings.TrimSuffix(fileName, ".d.ts.map") + declarationExtension + ".map"
	case strings.HasSuffix(fileName, ".d.ts"):
		return strings.TrimSuffix(fileName, ".d.ts") + declarationExtension
	case strings.HasSuffix(fileName, ".js.map"):
		return strings.TrimSuffix(fileName, ".js.map") + sourceExtension + ".map"
	case strings.HasSuffix(fileName, ".js"):
		return strings.TrimSuffix(fileName, ".js") + sourceExtension
	}
	return fileName
}
