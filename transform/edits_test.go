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
	"testing"
)

func TestApplyEdits(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		edits []edit
		want  string
	}{
		{
			name:  "insert before replacement at the same offset",
			src:   "abc;def",
			edits: []edit{{0, 4, "XYZ;"}, {0, 0, "pre "}},
			want:  "pre XYZ;def",
		},
		{
			name:  "out of order",
			src:   "one two three",
			edits: []edit{{8, 13, "3"}, {0, 3, "1"}},
			want:  "1 two 3",
		},
		{
			name:  "insert at end",
			src:   "x",
			edits: []edit{{1, 1, "y"}},
			want:  "xy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyEdits(tt.src, tt.edits)
			if err != nil {
				t.Fatalf("applyEdits failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyEditsOverlap(t *testing.T) {
	for name, edits := range map[string][]edit{
		"overlapping ranges": {{0, 5, "a"}, {3, 7, "b"}},
		"past the end":       {{2, 20, "a"}},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := applyEdits("0123456789", edits); !errors.Is(err, errInvalidEdits) {
				t.Errorf("expected errInvalidEdits, got %v", err)
			}
		})
	}
}
