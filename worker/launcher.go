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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// ProcessLauncher runs each build in a child process of Executable.
type ProcessLauncher struct {
	// Executable defaults to the running binary.
	Executable string
	// Args default to the hidden worker command.
	Args []string
	// Stderr receives the child's log output. Defaults to os.Stderr.
	Stderr io.Writer
	// Env is appended to the parent's environment.
	Env []string
}

// NewProcessLauncher re-executes the running binary.
func NewProcessLauncher() (*ProcessLauncher, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return &ProcessLauncher{Executable: exe, Args: []string{Command}, Stderr: os.Stderr}, nil
}

// Launch starts the child, sends it opts and waits for its result.
// Cancelling ctx kills the child.
func (l *ProcessLauncher) Launch(ctx context.Context, opts Options) (*Result, error) {
	project := RelativeProject(opts)

	input, err := json.Marshal(opts)
	if err != nil {
		return nil, &Error{Kind: KindInit, Project: project, Err: err}
	}

	args := l.Args
	if args == nil {
		args = []string{Command}
	}
	cmd := exec.CommandContext(ctx, l.Executable, args...)
	cmd.Dir = opts.BaseDir
	cmd.Stdin = bytes.NewReader(input)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = l.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}

	if err := cmd.Start(); err != nil {
		return nil, &Error{Kind: KindInit, Project: project, Err: err}
	}
	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var result Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &result); err != nil || result.Status == "" {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return nil, &ExitError{Project: project, Code: exitErr.ExitCode()}
		}
		if waitErr != nil {
			return nil, &Error{Kind: KindRuntime, Project: project, Err: waitErr}
		}
		return nil, &Error{Kind: KindRuntime, Project: project, Err: errors.New("worker sent no result")}
	}
	if err := resultError(project, &result); err != nil {
		return &result, err
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return &result, &ExitError{Project: project, Code: exitErr.ExitCode()}
	}
	return &result, nil
}

// LocalLauncher runs builds in the current process. Options and results
// still pass through JSON so the build sees its own copy.
type LocalLauncher struct {
	Build BuildFunc
}

func (l *LocalLauncher) Launch(ctx context.Context, opts Options) (*Result, error) {
	project := RelativeProject(opts)

	input, err := json.Marshal(opts)
	if err != nil {
		return nil, &Error{Kind: KindInit, Project: project, Err: err}
	}
	var out bytes.Buffer
	// Serve's error is also recorded in the result.
	_ = Serve(ctx, bytes.NewReader(input), &out, l.Build)

	var result Result
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		return nil, &Error{Kind: KindRuntime, Project: project, Err: err}
	}
	if err := resultError(project, &result); err != nil {
		return &result, err
	}
	return &result, nil
}

// RelativeProject is the project path used in messages.
func RelativeProject(opts Options) string {
	if opts.BaseDir == "" {
		return opts.Project
	}
	rel, err := filepath.Rel(opts.BaseDir, opts.Project)
	if err != nil {
		return opts.Project
	}
	return rel
}
