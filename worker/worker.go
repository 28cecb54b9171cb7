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

// Package worker builds one referenced project in an isolated process.
//
// The parent sends an [Options] value as JSON on the child's stdin and reads
// a [Result] from its stdout. Nothing else crosses the boundary; the child's
// stderr is its log stream.
package worker

import (
	"context"
	"errors"
	"fmt"

	"bennypowers.dev/duet/compiler"
)

// Command is the hidden subcommand the child process runs.
const Command = "__worker"

// Options is everything a worker needs to build one project.
type Options struct {
	// BaseDir is the directory of the root project. Project paths in
	// errors are reported relative to it.
	BaseDir string `json:"baseDir"`
	// Project is the absolute path of the project's config file.
	Project string `json:"project"`
	// Config is the project's parsed configuration.
	Config *compiler.ParsedConfig `json:"config"`
	// References are the parsed configurations the project refers to.
	References []*compiler.ParsedConfig `json:"references,omitempty"`
	Formats    []string                 `json:"formats"`
	Clean      bool                     `json:"clean,omitempty"`
	Shims      bool                     `json:"shims,omitempty"`
	Verbose    bool                     `json:"verbose,omitempty"`
	Exclude    []string                 `json:"exclude,omitempty"`
	// Compiler is the compiler command line.
	Compiler string `json:"compiler,omitempty"`
}

// Status of a finished worker.
type Status string

const (
	StatusOK          Status = "ok"
	StatusInit        Status = "init"
	StatusRuntime     Status = "runtime"
	StatusDiagnostics Status = "diagnostics"
)

// Result is what a worker reports back.
type Result struct {
	Project      string                `json:"project"`
	Status       Status                `json:"status"`
	Error        string                `json:"error,omitempty"`
	EmittedFiles []string              `json:"emittedFiles,omitempty"`
	Diagnostics  []compiler.Diagnostic `json:"diagnostics,omitempty"`
}

// BuildFunc builds the project described by opts.
type BuildFunc func(ctx context.Context, opts Options) (*Result, error)

// Launcher runs a build in isolation.
type Launcher interface {
	Launch(ctx context.Context, opts Options) (*Result, error)
}

// Kind distinguishes worker failures.
type Kind int

const (
	// KindInit means the worker could not start or read its options.
	KindInit Kind = iota
	// KindRuntime means the worker failed while building.
	KindRuntime
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "initialization"
	case KindRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

var (
	ErrInit    = errors.New("worker failed to initialize")
	ErrRuntime = errors.New("worker failed")
	ErrExit    = errors.New("worker exited with non-zero status")
)

// Error is a worker failure.
type Error struct {
	Kind    Kind
	Project string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("worker for %s: %s failure: %v", e.Project, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindInit:
		return target == ErrInit
	case KindRuntime:
		return target == ErrRuntime
	}
	return false
}

// ExitError is reported when a worker exits non-zero without explaining why.
type ExitError struct {
	Project string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("worker for %s exited with status %d", e.Project, e.Code)
}

func (e *ExitError) Is(target error) bool {
	return target == ErrExit
}

// resultError turns a failed result back into the error the worker saw.
func resultError(project string, r *Result) error {
	switch r.Status {
	case StatusOK:
		return nil
	case StatusDiagnostics:
		return &compiler.DiagnosticsError{Project: project, Diagnostics: r.Diagnostics}
	case StatusInit:
		return &Error{Kind: KindInit, Project: project, Err: errors.New(r.Error)}
	default:
		return &Error{Kind: KindRuntime, Project: project, Err: errors.New(r.Error)}
	}
}
