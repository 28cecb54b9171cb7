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
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"bennypowers.dev/duet/compiler"
)

// Serve is the child side: it reads Options from r, builds, and writes a
// Result to w. The returned error, if any, is also described in the result.
func Serve(ctx context.Context, r io.Reader, w io.Writer, build BuildFunc) (err error) {
	var opts Options
	result := &Result{Status: StatusOK}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			result = &Result{Project: opts.Project, Status: StatusRuntime, Error: err.Error()}
		}
		if encErr := json.NewEncoder(w).Encode(result); encErr != nil && err == nil {
			err = fmt.Errorf("write result: %w", encErr)
		}
	}()

	if decodeErr := json.NewDecoder(r).Decode(&opts); decodeErr != nil {
		result.Status = StatusInit
		result.Error = fmt.Sprintf("read options: %v", decodeErr)
		return &Error{Kind: KindInit, Err: decodeErr}
	}
	result.Project = opts.Project
	if opts.Config == nil || opts.Project == "" {
		result.Status = StatusInit
		result.Error = "options name no project"
		return &Error{Kind: KindInit, Project: opts.Project, Err: errors.New(result.Error)}
	}

	built, buildErr := build(ctx, opts)
	if built != nil {
		result.EmittedFiles = built.EmittedFiles
		result.Diagnostics = built.Diagnostics
	}
	if buildErr != nil {
		result.Error = buildErr.Error()
		result.Status = StatusRuntime
		var diagErr *compiler.DiagnosticsError
		if errors.As(buildErr, &diagErr) {
			result.Status = StatusDiagnostics
			result.Diagnostics = diagErr.Diagnostics
		}
		return buildErr
	}
	return nil
}
