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

// Package build provides the build command for duet.
package build

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/duet/build"
	"bennypowers.dev/duet/compiler"
	"bennypowers.dev/duet/fs"
	"bennypowers.dev/duet/internal/logging"
	"bennypowers.dev/duet/internal/metrics"
	"bennypowers.dev/duet/worker"
)

// Cmd is the build cobra command that compiles a project to ESM and CommonJS.
var Cmd = &cobra.Command{
	Use:   "build",
	Short: "Compile a TypeScript project to ES modules and CommonJS",
	Long: `Compile a TypeScript project once per module format.

ES module output is written as .mjs and .d.mts, CommonJS output as .cjs and
.d.cts, side by side in the project's outDir. Relative import specifiers are
rewritten to match.`,
	Example: `  # Build tsconfig.json in both formats
  duet build

  # Build a specific project and everything it references
  duet build -p packages/app/tsconfig.json --build-references

  # CommonJS only, from a clean output directory
  duet build --format commonjs --clean

  # Use the workspace's TypeScript through pnpm
  duet build --tsc "pnpm exec tsc"`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("project", "p", build.DefaultProject, "Path to tsconfig.json")
	Cmd.Flags().StringSliceP("format", "f", nil, "Output formats: module, commonjs (default both)")
	Cmd.Flags().Bool("clean", false, "Remove output directories before building")
	Cmd.Flags().BoolP("build-references", "b", false, "Build referenced projects first")
	Cmd.Flags().Bool("shims", false, "Add CommonJS interop and __dirname/import.meta shims")
	Cmd.Flags().IntP("concurrency", "j", runtime.NumCPU(), "Maximum referenced projects built at once")
	Cmd.Flags().String("tsc", compiler.DefaultCommand, "Command that runs the TypeScript compiler")
	Cmd.Flags().StringArray("exclude", nil, "Glob of emitted files to rename without rewriting (can be repeated)")
	Cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file")

	for _, name := range []string{
		"project", "format", "clean", "build-references", "shims",
		"concurrency", "tsc", "exclude", "metrics-file",
	} {
		_ = viper.BindPFlag(name, Cmd.Flags().Lookup(name))
	}
}

// Options reads the build options from flags, environment and config file.
func Options() build.Options {
	return build.Options{
		Project:         viper.GetString("project"),
		Formats:         viper.GetStringSlice("format"),
		Clean:           viper.GetBool("clean"),
		Verbose:         viper.GetBool("verbose"),
		BuildReferences: viper.GetBool("build-references"),
		Shims:           viper.GetBool("shims"),
		Concurrency:     viper.GetInt("concurrency"),
		Compiler:        viper.GetString("tsc"),
		Exclude:         viper.GetStringSlice("exclude"),
		MetricsFile:     viper.GetString("metrics-file"),
	}
}

func run(cmd *cobra.Command, args []string) error {
	opts := Options()
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments %v; use --project", args)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("could not get working directory: %w", err)
	}
	tsc, err := compiler.NewTSC(opts.Compiler)
	if err != nil {
		return err
	}
	launcher, err := worker.NewProcessLauncher()
	if err != nil {
		return err
	}
	var m *metrics.Metrics
	if opts.MetricsFile != "" {
		m = metrics.New()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return build.Run(ctx, opts, build.Env{
		FS:       fs.NewOSFileSystem(),
		Cwd:      cwd,
		Compiler: tsc,
		Launcher: launcher,
		Logger:   logging.NewConsole(opts.Verbose),
		Metrics:  m,
	})
}
