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

// Package worker provides the hidden command that builds one referenced
// project on behalf of a parent duet process.
package worker

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"bennypowers.dev/duet/build"
	"bennypowers.dev/duet/compiler"
	"bennypowers.dev/duet/fs"
	"bennypowers.dev/duet/internal/logging"
	"bennypowers.dev/duet/worker"
)

// Cmd reads worker.Options on stdin and writes a worker.Result on stdout.
var Cmd = &cobra.Command{
	Use:    worker.Command,
	Short:  "Build one referenced project (internal)",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return worker.Serve(cmd.Context(), os.Stdin, os.Stdout, Build)
	},
}

// Build runs the project build inside the worker process.
func Build(ctx context.Context, opts worker.Options) (*worker.Result, error) {
	tsc, err := compiler.NewTSC(opts.Compiler)
	if err != nil {
		return nil, &worker.Error{Kind: worker.KindInit, Project: worker.RelativeProject(opts), Err: err}
	}
	return build.Project(ctx, opts, build.Env{
		FS:       fs.NewOSFileSystem(),
		Cwd:      opts.BaseDir,
		Compiler: tsc,
		Logger:   logging.NewConsole(opts.Verbose),
	})
}
