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
	"context"
	"errors"
	"fmt"
	"sync"

	"bennypowers.dev/duet/compiler"
	duetfs "bennypowers.dev/duet/fs"
	"bennypowers.dev/duet/internal/logging"
	"bennypowers.dev/duet/packagejson"
	"bennypowers.dev/duet/resolve"
	"bennypowers.dev/duet/transform"
	"bennypowers.dev/duet/worker"
)

// Project builds one project in every requested format. It is the body of
// both the root build and each reference worker.
func Project(ctx context.Context, opts worker.Options, env Env) (*worker.Result, error) {
	cfg := opts.Config
	log := logging.OrDiscard(env.Logger)
	project := worker.RelativeProject(opts)
	sys := env.system()
	result := &worker.Result{Project: opts.Project, Status: worker.StatusOK}

	if diags := compiler.VerifyReferences(sys, opts.References); len(diags) > 0 {
		return nil, &compiler.DiagnosticsError{Project: project, Diagnostics: diags}
	}

	if opts.Clean {
		if err := clean(env.FS, opts, log); err != nil {
			return nil, err
		}
	}

	exclude, err := transform.NewMatcher(cfg.Dir(), opts.Exclude)
	if err != nil {
		return nil, err
	}

	cache, err := resolve.NewCache(resolve.DefaultCacheSize, sys.UseCaseSensitiveFileNames())
	if err != nil {
		return nil, err
	}
	redirects := make([]resolve.Redirect, 0, len(opts.References))
	for _, ref := range opts.References {
		redirects = append(redirects, ref.Redirect())
	}
	resolver := resolve.New(env.FS).
		WithPackageCache(packagejson.NewMemoryCache()).
		WithCache(cache).
		WithRedirects(redirects)

	for _, name := range opts.Formats {
		bt, err := transform.ParseBuildType(name)
		if err != nil {
			return nil, err
		}
		log.Debug("%s: emitting %s", project, bt)
		written, err := emit(ctx, env, sys, cfg, project, resolver, transform.Options{
			BuildType: bt,
			Shims:     opts.Shims,
			Verbose:   opts.Verbose,
			Exclude:   exclude,
			Logger:    log,
		})
		result.EmittedFiles = append(result.EmittedFiles, written...)
		if err != nil {
			return result, err
		}
	}
	env.Metrics.SetResolutionCache(cache.Stats())
	return result, nil
}

func emit(ctx context.Context, env Env, sys compiler.System, cfg *compiler.ParsedConfig, project string, resolver *resolve.Resolver, topts transform.Options) ([]string, error) {
	tr := transform.New(env.FS, resolver, topts)
	log := logging.OrDiscard(env.Logger)

	overrides := compiler.ModuleOverrides
	var ignore []int
	if topts.BuildType == transform.CommonJS {
		overrides = compiler.CommonJSOverrides
		if topts.Shims {
			ignore = append(ignore, compiler.CodeImportMetaInCommonJS)
		}
	}

	var mu sync.Mutex
	var written []string
	res, err := env.Compiler.Emit(ctx, cfg, compiler.EmitOptions{
		Overrides:   overrides,
		IgnoreCodes: ignore,
		WriteFile: func(fileName, text string, writeBOM bool, sourceFiles []string) error {
			var source string
			if len(sourceFiles) > 0 {
				source = sourceFiles[0]
			} else {
				source = cfg.SourceFile(fileName)
			}
			name, out, err := tr.Output(fileName, source, text)
			if err != nil {
				return fmt.Errorf("transform %s: %w", fileName, err)
			}
			if err := sys.WriteFile(name, out, writeBOM); err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
			mu.Lock()
			written = append(written, name)
			mu.Unlock()
			return nil
		},
	})
	if err != nil {
		return written, fmt.Errorf("%s: %w", project, err)
	}

	var errs []compiler.Diagnostic
	for _, d := range res.Diagnostics {
		env.Metrics.AddDiagnostic(string(d.Category))
		if d.IsError() {
			errs = append(errs, d)
			continue
		}
		log.Warning("%s", d)
	}
	if len(errs) > 0 {
		return written, &compiler.DiagnosticsError{Project: project, Diagnostics: errs}
	}
	return written, nil
}

// clean removes the project's output directories. A project without outDir
// emits beside its sources and is never cleaned.
func clean(fsys duetfs.FileSystem, opts worker.Options, log logging.Logger) error {
	cfg := opts.Config
	if cfg.Options.OutDir == "" && cfg.Options.DeclarationDir == "" {
		log.Warning("%s: no outDir, skipping clean", worker.RelativeProject(opts))
		return nil
	}
	base := opts.BaseDir
	if base == "" {
		base = cfg.Dir()
	}
	var errs []error
	for _, dir := range []string{cfg.Options.OutDir, cfg.Options.DeclarationDir} {
		if dir == "" {
			continue
		}
		log.Debug("removing %s", dir)
		if err := duetfs.RemoveAllWithin(fsys, base, dir); err != nil {
			errs = append(errs, fmt.Errorf("clean %s: %w", dir, err))
		}
	}
	return errors.Join(errs...)
}
