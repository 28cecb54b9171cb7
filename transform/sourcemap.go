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
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RewriteSourceMap renames the file a source map describes. Everything else
// in the map, including key order, is left as it was.
func RewriteSourceMap(content string, bt BuildType) (string, error) {
	if !gjson.Valid(content) {
		return "", fmt.Errorf("invalid source map JSON")
	}
	file := gjson.Get(content, "file")
	if file.Type != gjson.String {
		return content, nil
	}
	renamed := bt.OutputName(file.String())
	if renamed == file.String() {
		return content, nil
	}
	out, err := sjson.Set(content, "file", renamed)
	if err != nil {
		return "", fmt.Errorf("rewriting source map file: %w", err)
	}
	return out, nil
}

var sourceMappingURL = regexp.MustCompile(`(?m)^(//[#@] sourceMappingURL=)(\S+)[ \t]*$`)

// RewriteSourceMappingURL renames the map referenced by a trailing
// sourceMappingURL comment. Inline data URLs are left alone.
func RewriteSourceMappingURL(content string, bt BuildType) string {
	return sourceMappingURL.ReplaceAllStringFunc(content, func(comment string) string {
		m := sourceMappingURL.FindStringSubmatch(comment)
		if strings.HasPrefix(m[2], "data:") {
			return comment
		}
		return m[1] + bt.OutputName(m[2])
	})
}

// insertBeforeSourceMappingURL inserts text before the sourceMappingURL
// comment, or appends it when there is none.
func insertBeforeSourceMappingURL(content, text string) string {
	locs := sourceMappingURL.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return content + text
	}
	at := locs[len(locs)-1][0]
	return content[:at] + text + content[at:]
}

var errInvalidEdits = errors.New("overlapping or out-of-range edits")

type edit struct {
	start, end uint
	text       string
}

// applyEdits replaces each edit's range in src. Insertions at an offset
// come before a replacement starting there.
func applyEdits(src string, edits []edit) (string, error) {
	if len(edits) == 0 {
		return src, nil
	}
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].start != edits[j].start {
			return edits[i].start < edits[j].start
		}
		return edits[i].end == edits[i].start && edits[j].end != edits[j].start
	})
	var b strings.Builder
	b.Grow(len(src))
	var last uint
	for _, e := range edits {
		if e.start < last || e.end < e.start || e.end > uint(len(src)) {
			return "", fmt.Errorf("%w: [%d,%d) after offset %d", errInvalidEdits, e.start, e.end, last)
		}
		b.WriteString(src[last:e.start])
		b.WriteString(e.text)
		last = e.end
	}
	b.WriteString(src[last:])
	return b.String(), nil
}
