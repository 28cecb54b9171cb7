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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/shlex"

	duetfs "bennypowers.dev/duet/fs"
)

// DefaultCommand runs the project's own TypeScript.
const DefaultCommand = "npx tsc"

const emittedFilePrefix = "TSFILE: "

// Runner executes compiler commands.
type Runner interface {
	// Run returns the command's combined output and exit code. err is set only
	// when the command could not run at all.
	Run(ctx context.Context, dir string, args []string) (output []byte, exitCode int, err error)
}

// ExecRunner runs commands as subprocesses.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir string, args []string) ([]byte, int, error) {
	if len(args) == 0 {
		return nil, -1, errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return output, exitErr.ExitCode(), nil
	}
	if err != nil {
		return output, -1, fmt.Errorf("%s: %w", args[0], err)
	}
	return output, 0, nil
}

// FakeRunner is used in tests.
type FakeRunner struct {
	Calls   [][]string
	Handler func(dir string, args []string) ([]byte, int, error)
}

func (f *FakeRunner) Run(ctx context.Context, dir string, args []string) ([]byte, int, error) {
	f.Calls = append(f.Calls, args)
	if f.Handler == nil {
		return nil, 0, nil
	}
	return f.Handler(dir, args)
}

// TSC drives the TypeScript command-line compiler.
//
// Emit compiles into a scratch directory and replays every listed file
// through the caller's WriteFileFunc under its configured output name.
type TSC struct {
	Command []string
	Runner  Runner
	// FS reads the scratch directory.
	FS duetfs.FileSystem
}

// NewTSC parses command with shell quoting rules. An empty command means
// [DefaultCommand].
func NewTSC(command string) (*TSC, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse compiler command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("parse compiler command %q: empty", command)
	}
	return &TSC{Command: args, Runner: ExecRunner{}, FS: duetfs.NewOSFileSystem()}, nil
}

func (t *TSC) run(ctx context.Context, dir string, args ...string) ([]byte, int, error) {
	return t.Runner.Run(ctx, dir, append(slices.Clone(t.Command), args...))
}

// Version runs `tsc --version`.
func (t *TSC) Version(ctx context.Context) (*semver.Version, error) {
	out, code, err := t.run(ctx, "", "--version")
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("%s --version exited with status %d: %s",
			strings.Join(t.Command, " "), code, strings.TrimSpace(string(out)))
	}
	return ParseVersion(string(out))
}

// ParseConfig runs `tsc --showConfig`. Configuration errors are returned in
// ParsedConfig.Errors.
func (t *TSC) ParseConfig(ctx context.Context, configPath string) (*ParsedConfig, error) {
	out, code, err := t.run(ctx, filepath.Dir(configPath), "--showConfig", "--pretty", "false", "-p", configPath)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		diags := ParseDiagnostics(string(out))
		if len(diags) == 0 {
			return nil, fmt.Errorf("%s: compiler exited with status %d: %s",
				configPath, code, strings.TrimSpace(string(out)))
		}
		return &ParsedConfig{ConfigPath: configPath, Errors: diags}, nil
	}
	return ParseShowConfig(configPath, out)
}

// Emit compiles cfg.
func (t *TSC) Emit(ctx context.Context, cfg *ParsedConfig, opts EmitOptions) (*EmitResult, error) {
	if opts.WriteFile == nil {
		return nil, errors.New("emit requires a WriteFile callback")
	}
	scratch, err := os.MkdirTemp("", "duet-tsc-")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	outDir := filepath.Join(scratch, "out")
	args := []string{
		"-p", cfg.ConfigPath,
		"--pretty", "false",
		"--listEmittedFiles",
		"--rootDir", cfg.SourceRoot(),
		"--outDir", outDir,
	}
	// real directory by scratch directory
	dirs := map[string]string{outDir: cfg.OutputDir()}
	if cfg.Options.DeclarationDir != "" {
		declDir := filepath.Join(scratch, "types")
		args = append(args, "--declarationDir", declDir)
		dirs[declDir] = cfg.Options.DeclarationDir
	}
	if cfg.Options.Composite || cfg.Options.Incremental {
		args = append(args, "--tsBuildInfoFile", filepath.Join(scratch, "tsconfig.tsbuildinfo"))
	}
	keys := make([]string, 0, len(opts.Overrides))
	for k := range opts.Overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		args = append(args, "--"+k, opts.Overrides[k])
	}

	out, code, err := t.run(ctx, cfg.Dir(), args...)
	if err != nil {
		return nil, err
	}

	result := &EmitResult{}
	for _, d := range ParseDiagnostics(string(out)) {
		if !ignored(d, opts.IgnoreCodes) {
			result.Diagnostics = append(result.Diagnostics, d)
		}
	}

	emitted := listedFiles(out)
	if code != 0 && len(emitted) == 0 && len(result.Diagnostics) == 0 {
		return nil, fmt.Errorf("%s: compiler exited with status %d: %s",
			cfg.ConfigPath, code, strings.TrimSpace(string(out)))
	}

	for _, scratchFile := range emitted {
		real, ok := realPath(dirs, scratchFile)
		if !ok {
			continue
		}
		data, err := t.FS.ReadFile(scratchFile)
		if err != nil {
			return result, fmt.Errorf("read emitted file %s: %w", scratchFile, err)
		}
		text, bom := strings.CutPrefix(string(data), utf8BOM)
		var sources []string
		if src := cfg.SourceFile(real); src != "" {
			sources = []string{src}
		}
		if err := opts.WriteFile(real, text, bom, sources); err != nil {
			return result, err
		}
		result.EmittedFiles = append(result.EmittedFiles, real)
	}
	return result, nil
}

func listedFiles(output []byte) []string {
	var files []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if name, ok := strings.CutPrefix(line, emittedFilePrefix); ok {
			files = append(files, filepath.Clean(filepath.FromSlash(strings.TrimSpace(name))))
		}
	}
	return files
}

func realPath(dirs map[string]string, scratchFile string) (string, bool) {
	for scratchDir, realDir := range dirs {
		rel, err := filepath.Rel(scratchDir, scratchFile)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.Join(realDir, rel), true
	}
	return "", false
}
