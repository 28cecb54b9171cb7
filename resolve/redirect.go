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
package resolve

import (
	"path/filepath"
	"strings"
)

// Redirect maps the sources of a referenced project onto its emitted output,
// so that an import reaching into another project points at built files.
type Redirect struct {
	SourceRoot string
	OutDir     string
}

var emittedExtensions = map[string]string{
	".ts":  ".js",
	".tsx": ".js",
	".mts": ".mjs",
	".cts": ".cjs",
}

// Apply returns the output path for p when p lies inside SourceRoot.
// Declaration files are left alone since they have no emitted counterpart.
func (r Redirect) Apply(p string) (string, bool) {
	if r.SourceRoot == "" || r.OutDir == "" || isDeclaration(p) {
		return "", false
	}
	rel, err := filepath.Rel(r.SourceRoot, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	ext := filepath.Ext(rel)
	if out, ok := emittedExtensions[ext]; ok {
		rel = strings.TrimSuffix(rel, ext) + out
	}
	return filepath.Join(r.OutDir, rel), true
}

func isDeclaration(p string) bool {
	base := filepath.Base(p)
	for _, ext := range []string{".d.ts", ".d.mts", ".d.cts"} {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}
	return false
}
