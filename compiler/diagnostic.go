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
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Category is a diagnostic's severity.
type Category string

const (
	CategoryError   Category = "error"
	CategoryWarning Category = "warning"
	CategoryMessage Category = "message"
)

// Diagnostic is one message reported by the compiler.
type Diagnostic struct {
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Category Category `json:"category"`
	Code     int      `json:"code"`
	Message  string   `json:"message"`
}

// String formats the diagnostic the way tsc does without --pretty.
func (d Diagnostic) String() string {
	head := fmt.Sprintf("%s TS%d: %s", d.Category, d.Code, d.Message)
	if d.File == "" {
		return head
	}
	if d.Line > 0 {
		return fmt.Sprintf("%s(%d,%d): %s", d.File, d.Line, d.Column, head)
	}
	return d.File + ": " + head
}

// IsError reports whether the diagnostic is an error.
func (d Diagnostic) IsError() bool {
	return d.Category == CategoryError
}

var (
	locatedDiagnostic = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): (error|warning|message) TS(\d+): (.*)$`)
	globalDiagnostic  = regexp.MustCompile(`^(error|warning|message) TS(\d+): (.*)$`)
)

// ParseDiagnostics reads diagnostics from tsc output. Indented lines continue
// the previous message; anything else is ignored.
func ParseDiagnostics(output string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n") {
		if m := locatedDiagnostic.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			code, _ := strconv.Atoi(m[5])
			diags = append(diags, Diagnostic{
				File:     m[1],
				Line:     lineNo,
				Column:   col,
				Category: Category(m[4]),
				Code:     code,
				Message:  m[6],
			})
			continue
		}
		if m := globalDiagnostic.FindStringSubmatch(line); m != nil {
			code, _ := strconv.Atoi(m[2])
			diags = append(diags, Diagnostic{Category: Category(m[1]), Code: code, Message: m[3]})
			continue
		}
		if len(diags) > 0 && strings.HasPrefix(line, "  ") && strings.TrimSpace(line) != "" {
			last := &diags[len(diags)-1]
			last.Message += "\n" + line
		}
	}
	return diags
}

// Errors returns the error diagnostics in diags.
func Errors(diags []Diagnostic) []Diagnostic {
	var errs []Diagnostic
	for _, d := range diags {
		if d.IsError() {
			errs = append(errs, d)
		}
	}
	return errs
}

// ErrDiagnostics matches any *DiagnosticsError.
var ErrDiagnostics = errors.New("compiler reported errors")

// DiagnosticsError is a build failure caused by compiler diagnostics.
type DiagnosticsError struct {
	Project     string
	Diagnostics []Diagnostic
}

func (e *DiagnosticsError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d compiler error(s)", e.Project, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		b.WriteString("\n")
		b.WriteString(d.String())
	}
	return b.String()
}

func (e *DiagnosticsError) Is(target error) bool {
	return target == ErrDiagnostics
}
