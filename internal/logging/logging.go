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

// Package logging writes duet's console output.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Logger receives progress and diagnostic messages.
type Logger interface {
	Info(format string, args ...any)
	Warning(format string, args ...any)
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

var (
	errorPrefix   = color.New(color.FgRed, color.Bold).SprintFunc()
	warningPrefix = color.New(color.FgYellow).SprintFunc()
	infoPrefix    = color.New(color.FgCyan).SprintFunc()
	debugPrefix   = color.New(color.Faint).SprintFunc()
)

// Console writes prefixed lines to a writer. Debug lines are written only
// when verbose. Colour follows fatih/color, which disables itself when the
// output is not a terminal.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewConsole returns a Console writing to stderr.
func NewConsole(verbose bool) *Console {
	return NewConsoleWriter(os.Stderr, verbose)
}

// NewConsoleWriter returns a Console writing to w.
func NewConsoleWriter(w io.Writer, verbose bool) *Console {
	return &Console{w: w, verbose: verbose}
}

// Verbose reports whether debug output is enabled.
func (c *Console) Verbose() bool {
	return c.verbose
}

func (c *Console) Info(format string, args ...any) {
	c.print(infoPrefix("info"), format, args)
}

func (c *Console) Warning(format string, args ...any) {
	c.print(warningPrefix("warning"), format, args)
}

func (c *Console) Debug(format string, args ...any) {
	if c.verbose {
		c.print(debugPrefix("debug"), format, args)
	}
}

func (c *Console) Error(format string, args ...any) {
	c.print(errorPrefix("error"), format, args)
}

func (c *Console) print(prefix, format string, args []any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s: %s\n", prefix, msg)
}

type discard struct{}

func (discard) Info(string, ...any)    {}
func (discard) Warning(string, ...any) {}
func (discard) Debug(string, ...any)   {}
func (discard) Error(string, ...any)   {}

// Discard drops every message.
var Discard Logger = discard{}

// OrDiscard returns l, or Discard when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}
