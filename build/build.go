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

// Package build compiles a TypeScript project, and optionally the projects
// it references, to ES module and CommonJS output side by side.
//
// Each format is a separate compiler emit. Every emitted file passes through
// a [transform.Transformer] that renames it (.mjs/.cjs, .d.mts/.d.cts) and
// rewrites its relative specifiers to match before it is written.
//
// Referenced projects are built first, in dependency order, each in its own
// worker process. The root project is built in-process last.
package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"bennypowers.dev/duet/compiler"
	"bennypowers.dev/duet/graph"
	"bennypowers.dev/duet/internal/logging"
	"bennypowers.dev/duet/internal/metrics"
	"bennypowers.dev/duet/transform"
	"bennypowers.dev/duet/worker"
)

// Run builds opts.Project.
func Run(ctx context.Context, opts Options, env Env) (err error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return err
	}
	log := logging.OrDiscard(env.Logger)
	env.Logger = log

	defer func() {
		if werr := env.Metrics.WriteTextfile(opts.MetricsFile); werr != nil {
			err = errors.Join(err, fmt.Errorf("write metrics: %w", werr))
		}
	}()

	configPath := opts.Project
	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(env.Cwd, configPath)
	}
	baseDir := filepath.Dir(configPath)

	v, err := compiler.CheckVersion(ctx, env.Compiler)
	if err != nil {
		return err
	}
	log.Debug("using TypeScript %s", v)

	refs, err := loadReferences(ctx, env.Compiler, baseDir, configPath)
	if err != nil {
		return err
	}
	root := refs.configs[configPath]

	sorted, cycles := graph.TopologicalSort(refs.graph)
	if len(cycles) > 0 {
		return graph.NewCycleError(cycles, func(p string) string { return relative(baseDir, p) })
	}

	shadows := newShadows(env.FS)
	defer func() {
		if cerr := shadows.cleanup(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if opts.BuildReferences && refs.graph.Len() > 1 {
		if err := buildReferences(ctx, opts, env, baseDir, configPath, sorted, refs, shadows); err != nil {
			return err
		}
	}

	for _, ref := range refs.closure(configPath) {
		if err := shadows.add(ref); err != nil {
			return err
		}
	}

	log.Info("building %s", relative(baseDir, configPath))
	start := time.Now()
	result, err := Project(ctx, opts.workerOptions(baseDir, root, refs.direct(configPath)), env)
	env.Metrics.ObserveProject("root", time.Since(start), err)
	countEmitted(env.Metrics, result)
	return err
}

func buildReferences(ctx context.Context, opts Options, env Env, baseDir, rootPath string, sorted []string, refs *references, shadows *shadows) error {
	if env.Launcher == nil {
		return errors.New("building references requires a worker launcher")
	}

	var pending []string
	for _, p := range sorted {
		if p != rootPath {
			pending = append(pending, p)
		}
	}

	log := env.Logger
	return graph.RunParallel(ctx, pending, refs.graph, opts.Concurrency, func(ctx context.Context, p string) error {
		name := relative(baseDir, p)
		log.Info("building reference %s", name)

		env.Metrics.WorkerStarted()
		start := time.Now()
		result, err := env.Launcher.Launch(ctx, opts.workerOptions(baseDir, refs.configs[p], refs.direct(p)))
		env.Metrics.WorkerFinished()
		env.Metrics.ObserveProject("reference", time.Since(start), err)
		countEmitted(env.Metrics, result)
		if err != nil {
			return err
		}
		return shadows.add(refs.configs[p])
	})
}

// countEmitted attributes each written file to the format whose extensions
// it carries.
func countEmitted(m *metrics.Metrics, result *worker.Result) {
	if result == nil {
		return
	}
	for _, bt := range transform.BuildTypes {
		n := 0
		for _, f := range result.EmittedFiles {
			if bt.OriginalName(f) != f {
				n++
			}
		}
		m.AddEmitted(bt.Name, n)
	}
}

func relative(base, p string) string {
	if rel, err := filepath.Rel(base, p); err == nil {
		return rel
	}
	return p
}
