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
package build_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/duet/build"
	"bennypowers.dev/duet/compiler"
	"bennypowers.dev/duet/graph"
	"bennypowers.dev/duet/internal/mapfs"
	"bennypowers.dev/duet/internal/metrics"
	"bennypowers.dev/duet/worker"
)

const (
	rootConfig = "/repo/tsconfig.json"
	coreConfig = "/repo/packages/core/tsconfig.json"
	coreShadow = "/repo/packages/core/dist/index.d.ts"
)

// fakeCompiler replays canned emits keyed by config path and module kind.
type fakeCompiler struct {
	version string
	fs      *mapfs.MapFileSystem
	configs map[string]*compiler.ParsedConfig
	emits   map[string]map[string]map[string]string
	diags   map[string][]compiler.Diagnostic

	mu         sync.Mutex
	calls      []string
	ignored    map[string][]int
	shadowSeen bool
}

func (f *fakeCompiler) Version(context.Context) (*semver.Version, error) {
	if f.version == "" {
		return semver.NewVersion("5.4.5")
	}
	return semver.NewVersion(f.version)
}

func (f *fakeCompiler) ParseConfig(_ context.Context, p string) (*compiler.ParsedConfig, error) {
	cfg, ok := f.configs[p]
	if !ok {
		return nil, fmt.Errorf("cannot read file %s", p)
	}
	c := *cfg
	return &c, nil
}

func (f *fakeCompiler) Emit(_ context.Context, cfg *compiler.ParsedConfig, opts compiler.EmitOptions) (*compiler.EmitResult, error) {
	module := opts.Overrides["module"]
	f.mu.Lock()
	f.calls = append(f.calls, filepath.Base(filepath.Dir(cfg.ConfigPath))+":"+module)
	f.ignored[cfg.ConfigPath+":"+module] = opts.IgnoreCodes
	if cfg.ConfigPath == rootConfig && f.fs.Exists(coreShadow) {
		f.shadowSeen = true
	}
	f.mu.Unlock()

	files := f.emits[cfg.ConfigPath][module]
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := opts.WriteFile(name, files[name], false, nil); err != nil {
			return nil, err
		}
	}
	return &compiler.EmitResult{Diagnostics: f.diags[cfg.ConfigPath], EmittedFiles: names}, nil
}

func (f *fakeCompiler) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func newFixture(t *testing.T) (*mapfs.MapFileSystem, *fakeCompiler) {
	t.Helper()
	mfs := mapfs.New()
	mfs.AddFiles(map[string]string{
		"/repo/package.json":                 `{"name": "repo", "type": "module"}`,
		"/repo/tsconfig.json":                `{}`,
		"/repo/src/index.ts":                 "import { util } from './util.js';\nimport { core } from '../packages/core/src/index.js';\nexport const x = util + core;\n",
		"/repo/src/util.ts":                  "export const util = 1;\n",
		"/repo/packages/core/tsconfig.json":  `{}`,
		"/repo/packages/core/src/index.ts":   "export const core = 1;\n",
		"/repo/packages/core/dist/stale.mjs": "old",
	})

	root := &compiler.ParsedConfig{
		ConfigPath: rootConfig,
		Options:    compiler.CompilerOptions{RootDir: "/repo/src", OutDir: "/repo/dist", Declaration: true},
		FileNames:  []string{"/repo/src/index.ts", "/repo/src/util.ts"},
		References: []*compiler.ProjectReference{{Path: coreConfig, OriginalPath: "./packages/core"}},
	}
	core := &compiler.ParsedConfig{
		ConfigPath: coreConfig,
		Options: compiler.CompilerOptions{
			RootDir:     "/repo/packages/core/src",
			OutDir:      "/repo/packages/core/dist",
			Composite:   true,
			Declaration: true,
		},
		FileNames: []string{"/repo/packages/core/src/index.ts"},
	}

	fc := &fakeCompiler{
		fs:      mfs,
		configs: map[string]*compiler.ParsedConfig{rootConfig: root, coreConfig: core},
		ignored: make(map[string][]int),
		emits: map[string]map[string]map[string]string{
			rootConfig: {
				"ESNext": {
					"/repo/dist/index.js":   "import { util } from './util.js';\nimport { core } from '../packages/core/src/index.js';\nexport const x = util + core;\n",
					"/repo/dist/util.js":    "export const util = 1;\n",
					"/repo/dist/index.d.ts": "export declare const x: number;\n",
				},
				"CommonJS": {
					"/repo/dist/index.js": "\"use strict\";\nconst util_js_1 = require(\"./util.js\");\n" +
						"const index_js_1 = require(\"../packages/core/src/index.js\");\nexports.x = util_js_1.util + index_js_1.core;\n",
					"/repo/dist/util.js":    "\"use strict\";\nexports.util = 1;\n",
					"/repo/dist/index.d.ts": "export declare const x: number;\n",
				},
			},
			coreConfig: {
				"ESNext": {
					"/repo/packages/core/dist/index.js":   "export const core = 1;\n",
					"/repo/packages/core/dist/index.d.ts": "export declare const core = 1;\n",
				},
				"CommonJS": {
					"/repo/packages/core/dist/index.js":   "\"use strict\";\nexports.core = 1;\n",
					"/repo/packages/core/dist/index.d.ts": "export declare const core = 1;\n",
				},
			},
		},
	}
	return mfs, fc
}

func newEnv(mfs *mapfs.MapFileSystem, c compiler.Compiler) build.Env {
	env := build.Env{FS: mfs, Cwd: "/repo", Compiler: c}
	env.Launcher = &worker.LocalLauncher{Build: func(ctx context.Context, opts worker.Options) (*worker.Result, error) {
		return build.Project(ctx, opts, env)
	}}
	return env
}

func read(t *testing.T, mfs *mapfs.MapFileSystem, p string) string {
	t.Helper()
	data, err := mfs.ReadFile(p)
	require.NoError(t, err, p)
	return string(data)
}

func TestRunBuildsReferencesFirst(t *testing.T) {
	mfs, fc := newFixture(t)
	err := build.Run(context.Background(), build.Options{BuildReferences: true, Clean: true}, newEnv(mfs, fc))
	require.NoError(t, err)

	assert.Equal(t, []string{"core:ESNext", "core:CommonJS", "repo:ESNext", "repo:CommonJS"}, fc.Calls())

	esm := read(t, mfs, "/repo/dist/index.mjs")
	assert.Contains(t, esm, "from './util.mjs'")
	assert.Contains(t, esm, "from '../packages/core/dist/index.mjs'")

	cjs := read(t, mfs, "/repo/dist/index.cjs")
	assert.Contains(t, cjs, `require("./util.cjs")`)
	assert.Contains(t, cjs, `require("../packages/core/dist/index.cjs")`)

	assert.Equal(t, "export declare const x: number;\n", read(t, mfs, "/repo/dist/index.d.mts"))
	assert.Equal(t, "export declare const x: number;\n", read(t, mfs, "/repo/dist/index.d.cts"))
	assert.True(t, mfs.Exists("/repo/packages/core/dist/index.mjs"))
	assert.True(t, mfs.Exists("/repo/packages/core/dist/index.d.cts"))
	assert.False(t, mfs.Exists("/repo/dist/index.js"), "compiler names are never written")

	assert.False(t, mfs.Exists("/repo/packages/core/dist/stale.mjs"), "reference output was cleaned")
	assert.True(t, fc.shadowSeen, "root compiles against the reference's declarations")
	assert.False(t, mfs.Exists(coreShadow), "shadow declarations are removed")
}

func TestRunRequiresBuiltReferences(t *testing.T) {
	mfs, fc := newFixture(t)
	err := build.Run(context.Background(), build.Options{}, newEnv(mfs, fc))

	require.ErrorIs(t, err, compiler.ErrDiagnostics)
	assert.Contains(t, err.Error(), "TS6305")
	assert.Empty(t, fc.Calls())
}

func TestRunUsesPrebuiltReferences(t *testing.T) {
	mfs, fc := newFixture(t)
	mfs.AddFile("/repo/packages/core/dist/index.d.mts", "export declare const core = 1;\n", 0o644)

	err := build.Run(context.Background(), build.Options{Formats: []string{"module"}}, newEnv(mfs, fc))
	require.NoError(t, err)
	assert.Equal(t, []string{"repo:ESNext"}, fc.Calls())
	assert.True(t, fc.shadowSeen)
	assert.False(t, mfs.Exists(coreShadow))
	assert.False(t, mfs.Exists("/repo/dist/index.cjs"))
}

func TestRunCycle(t *testing.T) {
	for _, buildReferences := range []bool{true, false} {
		t.Run(fmt.Sprintf("build references %t", buildReferences), func(t *testing.T) {
			mfs, fc := newFixture(t)
			fc.configs[coreConfig].References = []*compiler.ProjectReference{{Path: rootConfig, OriginalPath: "../.."}}

			err := build.Run(context.Background(), build.Options{BuildReferences: buildReferences}, newEnv(mfs, fc))
			require.ErrorIs(t, err, graph.ErrCycle)
			assert.Contains(t, err.Error(), "tsconfig.json -> packages/core/tsconfig.json -> tsconfig.json")
			assert.Empty(t, fc.Calls())
		})
	}
}

func TestRunDiagnostics(t *testing.T) {
	tests := []struct {
		name    string
		diags   []compiler.Diagnostic
		wantErr bool
	}{
		{
			name:    "error fails the build",
			diags:   []compiler.Diagnostic{{File: "src/index.ts", Line: 1, Column: 1, Category: compiler.CategoryError, Code: 2304, Message: "Cannot find name 'y'."}},
			wantErr: true,
		},
		{
			name:  "warnings do not",
			diags: []compiler.Diagnostic{{Category: compiler.CategoryWarning, Code: 6133, Message: "unused"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mfs, fc := newFixture(t)
			fc.diags = map[string][]compiler.Diagnostic{rootConfig: tt.diags}

			err := build.Run(context.Background(), build.Options{BuildReferences: true}, newEnv(mfs, fc))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var diagErr *compiler.DiagnosticsError
			require.ErrorAs(t, err, &diagErr)
			assert.Equal(t, "tsconfig.json", diagErr.Project)
			assert.Contains(t, err.Error(), "src/index.ts(1,1): error TS2304")
		})
	}
}

func TestRunVersionGate(t *testing.T) {
	mfs, fc := newFixture(t)
	fc.version = "4.6.2"

	err := build.Run(context.Background(), build.Options{}, newEnv(mfs, fc))
	require.ErrorIs(t, err, compiler.ErrUnsupportedVersion)
}

func TestRunConfigErrors(t *testing.T) {
	mfs, fc := newFixture(t)
	fc.configs[coreConfig].Errors = []compiler.Diagnostic{
		{File: "packages/core/tsconfig.json", Line: 3, Column: 5, Category: compiler.CategoryError, Code: 5023, Message: "Unknown compiler option 'bogus'."},
	}

	err := build.Run(context.Background(), build.Options{BuildReferences: true}, newEnv(mfs, fc))
	var diagErr *compiler.DiagnosticsError
	require.ErrorAs(t, err, &diagErr)
	assert.Equal(t, "packages/core/tsconfig.json", diagErr.Project)
}

func TestRunMissingReference(t *testing.T) {
	mfs, fc := newFixture(t)
	delete(fc.configs, coreConfig)

	err := build.Run(context.Background(), build.Options{BuildReferences: true}, newEnv(mfs, fc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "packages/core/tsconfig.json")
}

func TestRunWorkerFailure(t *testing.T) {
	mfs, fc := newFixture(t)
	env := newEnv(mfs, fc)
	boom := &worker.ExitError{Project: "packages/core/tsconfig.json", Code: 137}
	env.Launcher = launcherFunc(func(context.Context, worker.Options) (*worker.Result, error) {
		return nil, boom
	})

	err := build.Run(context.Background(), build.Options{BuildReferences: true}, env)
	require.ErrorIs(t, err, worker.ErrExit)
	assert.Empty(t, fc.Calls(), "root is not built after a reference fails")
}

type launcherFunc func(context.Context, worker.Options) (*worker.Result, error)

func (f launcherFunc) Launch(ctx context.Context, opts worker.Options) (*worker.Result, error) {
	return f(ctx, opts)
}

func TestRunShimsIgnoreImportMetaInCommonJS(t *testing.T) {
	mfs, fc := newFixture(t)
	err := build.Run(context.Background(), build.Options{BuildReferences: true, Shims: true}, newEnv(mfs, fc))
	require.NoError(t, err)

	assert.Equal(t, []int{compiler.CodeImportMetaInCommonJS}, fc.ignored[rootConfig+":CommonJS"])
	assert.Empty(t, fc.ignored[rootConfig+":ESNext"])
}

func TestRunMetrics(t *testing.T) {
	mfs, fc := newFixture(t)
	env := newEnv(mfs, fc)
	env.Metrics = metrics.New()
	path := filepath.Join(t.TempDir(), "duet.prom")

	err := build.Run(context.Background(), build.Options{BuildReferences: true, MetricsFile: path}, env)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `duet_projects_built_total{status="success"} 2`)
	assert.Contains(t, string(data), `duet_emitted_files_total{format="module"} 5`)
}

func TestProjectExclude(t *testing.T) {
	mfs, fc := newFixture(t)
	fc.emits[rootConfig]["ESNext"]["/repo/dist/vendor/lib.js"] = "import './x.js';\n"
	mfs.AddFile("/repo/packages/core/dist/index.d.mts", "export {};", 0o644)

	err := build.Run(context.Background(), build.Options{
		Formats: []string{"module"},
		Exclude: []string{"dist/vendor/**"},
	}, newEnv(mfs, fc))
	require.NoError(t, err)
	assert.Equal(t, "import './x.js';\n", read(t, mfs, "/repo/dist/vendor/lib.mjs"))
}

func TestProjectClean(t *testing.T) {
	mfs, fc := newFixture(t)
	mfs.AddFile("/repo/dist/stale.mjs", "old", 0o644)
	env := newEnv(mfs, fc)
	root := fc.configs[rootConfig]

	_, err := build.Project(context.Background(), worker.Options{
		BaseDir: "/repo",
		Project: rootConfig,
		Config:  root,
		Formats: []string{"commonjs"},
	}, env)
	require.NoError(t, err)
	assert.True(t, mfs.Exists("/repo/dist/stale.mjs"))

	result, err := build.Project(context.Background(), worker.Options{
		BaseDir: "/repo",
		Project: rootConfig,
		Config:  root,
		Formats: []string{"commonjs"},
		Clean:   true,
	}, env)
	require.NoError(t, err)
	assert.False(t, mfs.Exists("/repo/dist/stale.mjs"))
	assert.ElementsMatch(t, []string{"/repo/dist/index.cjs", "/repo/dist/index.d.cts", "/repo/dist/util.cjs"}, result.EmittedFiles)
}

func TestProjectCleanWithoutOutDir(t *testing.T) {
	mfs, fc := newFixture(t)
	env := newEnv(mfs, fc)
	cfg := &compiler.ParsedConfig{
		ConfigPath: rootConfig,
		FileNames:  []string{"/repo/src/util.ts"},
	}

	_, err := build.Project(context.Background(), worker.Options{
		BaseDir: "/repo",
		Project: rootConfig,
		Config:  cfg,
		Formats: []string{"module"},
		Clean:   true,
	}, env)
	require.NoError(t, err)
	assert.True(t, mfs.Exists("/repo/src/util.ts"), "sources are never cleaned")
}

func TestProjectCleanOutsideBase(t *testing.T) {
	mfs, fc := newFixture(t)
	mfs.AddFile("/elsewhere/dist/keep.js", "keep", 0o644)
	cfg := &compiler.ParsedConfig{
		ConfigPath: rootConfig,
		Options:    compiler.CompilerOptions{OutDir: "/elsewhere/dist"},
	}

	_, err := build.Project(context.Background(), worker.Options{
		BaseDir: "/repo",
		Project: rootConfig,
		Config:  cfg,
		Formats: []string{"module"},
		Clean:   true,
	}, newEnv(mfs, fc))
	require.Error(t, err)
	assert.True(t, mfs.Exists("/elsewhere/dist/keep.js"))
}

func TestOptions(t *testing.T) {
	opts := build.Options{}.WithDefaults()
	assert.Equal(t, build.DefaultProject, opts.Project)
	assert.Equal(t, []string{"module", "commonjs"}, opts.Formats)
	assert.Positive(t, opts.Concurrency)
	assert.Equal(t, compiler.DefaultCommand, opts.Compiler)
	require.NoError(t, opts.Validate())

	assert.Error(t, build.Options{Formats: []string{"umd"}}.Validate())
	assert.Error(t, build.Options{Formats: []string{"module", "module"}}.Validate())
}

func TestRunCancelled(t *testing.T) {
	mfs, fc := newFixture(t)
	env := newEnv(mfs, fc)
	ctx, cancel := context.WithCancel(context.Background())
	env.Launcher = launcherFunc(func(ctx context.Context, _ worker.Options) (*worker.Result, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})

	err := build.Run(ctx, build.Options{BuildReferences: true}, env)
	require.True(t, errors.Is(err, context.Canceled))
}
