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
package build

import (
	"fmt"
	"runtime"
	"slices"

	"bennypowers.dev/duet/compiler"
	duetfs "bennypowers.dev/duet/fs"
	"bennypowers.dev/duet/internal/logging"
	"bennypowers.dev/duet/internal/metrics"
	"bennypowers.dev/duet/transform"
	"bennypowers.dev/duet/worker"
)

// DefaultProject is the config file built when none is named.
const DefaultProject = "tsconfig.json"

// Options configure a build. They are fixed once the build starts.
type Options struct {
	// Project is the config file, relative to the working directory.
	Project string
	// Formats to emit, in order. Empty means module then commonjs.
	Formats []string
	// Clean removes each project's output directories before emitting.
	Clean bool
	// Verbose enables debug logging and unresolved-specifier warnings.
	Verbose bool
	// BuildReferences builds referenced projects first, in workers.
	BuildReferences bool
	// Shims enables interop and path shims.
	Shims bool
	// Concurrency bounds running workers. Zero means runtime.NumCPU().
	Concurrency int
	// Compiler is the command line that runs tsc.
	Compiler string
	// Exclude lists globs, relative to each project, of emitted files to
	// rename without rewriting.
	Exclude []string
	// MetricsFile, when set, receives Prometheus metrics after the build.
	MetricsFile string
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.Project == "" {
		o.Project = DefaultProject
	}
	if len(o.Formats) == 0 {
		for _, bt := range transform.BuildTypes {
			o.Formats = append(o.Formats, bt.Name)
		}
	}
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.NumCPU()
	}
	if o.Compiler == "" {
		o.Compiler = compiler.DefaultCommand
	}
	return o
}

// Validate checks the formats.
func (o Options) Validate() error {
	seen := make(map[string]bool)
	for _, f := range o.Formats {
		if _, err := transform.ParseBuildType(f); err != nil {
			return err
		}
		if seen[f] {
			return fmt.Errorf("format %q given twice", f)
		}
		seen[f] = true
	}
	return nil
}

// workerOptions is the request for building cfg.
func (o Options) workerOptions(baseDir string, cfg *compiler.ParsedConfig, refs []*compiler.ParsedConfig) worker.Options {
	return worker.Options{
		BaseDir:    baseDir,
		Project:    cfg.ConfigPath,
		Config:     cfg,
		References: refs,
		Formats:    slices.Clone(o.Formats),
		Clean:      o.Clean,
		Shims:      o.Shims,
		Verbose:    o.Verbose,
		Exclude:    slices.Clone(o.Exclude),
		Compiler:   o.Compiler,
	}
}

// Env is what a build runs against.
type Env struct {
	FS duetfs.FileSystem
	// Cwd resolves a relative Options.Project.
	Cwd      string
	Compiler compiler.Compiler
	// Launcher builds referenced projects.
	Launcher worker.Launcher
	Logger   logging.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

func (e Env) system() compiler.System {
	return compiler.NewSystem(e.FS, e.Cwd)
}
