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
package compiler_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"bennypowers.dev/duet/compiler"
)

func TestParseDiagnostics(t *testing.T) {
	output := "src/index.ts(3,7): error TS2322: Type 'string' is not assignable to type 'number'.\n" +
		"src/a.ts(10,1): error TS2345: Argument of type 'A' is not assignable.\n" +
		"  Property 'x' is missing in type 'A'.\r\n" +
		"error TS5083: Cannot read file '/p/base.json'.\n" +
		"TSFILE: /tmp/out/index.js\n" +
		"src/b.ts(1,1): warning TS6133: 'x' is declared but its value is never read.\n"

	assert.Equal(t, []compiler.Diagnostic{
		{File: "src/index.ts", Line: 3, Column: 7, Category: compiler.CategoryError, Code: 2322,
			Message: "Type 'string' is not assignable to type 'number'."},
		{File: "src/a.ts", Line: 10, Column: 1, Category: compiler.CategoryError, Code: 2345,
			Message: "Argument of type 'A' is not assignable.\n  Property 'x' is missing in type 'A'."},
		{Category: compiler.CategoryError, Code: 5083, Message: "Cannot read file '/p/base.json'."},
		{File: "src/b.ts", Line: 1, Column: 1, Category: compiler.CategoryWarning, Code: 6133,
			Message: "'x' is declared but its value is never read."},
	}, compiler.ParseDiagnostics(output))
}

func TestParseDiagnosticsEmpty(t *testing.T) {
	assert.Nil(t, compiler.ParseDiagnostics("TSFILE: /tmp/out/a.js\n"))
}

func TestDiagnosticString(t *testing.T) {
	tests := []struct {
		name string
		diag compiler.Diagnostic
		want string
	}{
		{
			name: "located",
			diag: compiler.Diagnostic{File: "a.ts", Line: 1, Column: 2, Category: compiler.CategoryError, Code: 1005, Message: "';' expected."},
			want: "a.ts(1,2): error TS1005: ';' expected.",
		},
		{
			name: "file only",
			diag: compiler.Diagnostic{File: "tsconfig.json", Category: compiler.CategoryError, Code: 6306, Message: "not composite"},
			want: "tsconfig.json: error TS6306: not composite",
		},
		{
			name: "global",
			diag: compiler.Diagnostic{Category: compiler.CategoryMessage, Code: 6194, Message: "Found 0 errors."},
			want: "message TS6194: Found 0 errors.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.diag.String())
		})
	}
}

func TestDiagnosticsError(t *testing.T) {
	diags := []compiler.Diagnostic{
		{File: "a.ts", Line: 1, Column: 1, Category: compiler.CategoryError, Code: 2304, Message: "Cannot find name 'x'."},
		{Category: compiler.CategoryWarning, Code: 1, Message: "meh"},
	}
	errs := compiler.Errors(diags)
	assert.Len(t, errs, 1)

	err := &compiler.DiagnosticsError{Project: "packages/app/tsconfig.json", Diagnostics: errs}
	assert.True(t, errors.Is(err, compiler.ErrDiagnostics))
	assert.Equal(t,
		"packages/app/tsconfig.json: 1 compiler error(s)\na.ts(1,1): error TS2304: Cannot find name 'x'.",
		err.Error())
}
