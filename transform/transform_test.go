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
package transform_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"bennypowers.dev/duet/internal/mapfs"
	"bennypowers.dev/duet/resolve"
	"bennypowers.dev/duet/transform"
)

const (
	sourceFile = "/project/src/index.ts"
	outputFile = "/project/dist/index.js"
)

func newProject() *mapfs.MapFileSystem {
	mfs := mapfs.New()
	mfs.AddFiles(map[string]string{
		"/project/package.json":                      `{"name": "pkg", "type": "module"}`,
		"/project/src/index.ts":                      ``,
		"/project/src/util.ts":                       ``,
		"/project/src/dir/index.ts":                  ``,
		"/project/src/data.json":                     `{}`,
		"/project/src/legacy.cjs":                    `module.exports = {};`,
		"/project/src/esm.mts":                       ``,
		"/project/src/old.cts":                       ``,
		"/project/src/types.d.ts":                    ``,
		"/project/node_modules/cjs-lib/package.json": `{"name": "cjs-lib", "main": "index.js"}`,
		"/project/node_modules/esm-lib/package.json": `{"name": "esm-lib", "type": "module", "exports": "./index.js"}`,
		"/project/node_modules/esm-lib/index.js":     `export default 1;`,
		"/other/src/lib.ts":                          ``,
	})
	mfs.AddFile("/project/node_modules/cjs-lib/index.js", `Object.defineProperty(exports, "__esModule", { value: true });
exports.named = 1;
exports.default = 2;
`, 0644)
	return mfs
}

type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Error(string, ...any) {}
func (l *recordingLogger) Warning(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func TestTransformJavaScript(t *testing.T) {
	tests := []struct {
		name  string
		bt    transform.BuildType
		input string
		want  string
	}{
		{
			name: "module",
			bt:   transform.Module,
			input: `import { helper } from './util.js';
import * as dir from './dir';
import data from './data.json';
export * from './util.js';
const lazy = () => import('./dir/index.js');
import pkg from 'esm-lib';
import missing from './missing.js';
export * from './esm.mjs';
const old = () => import('./old.cjs');
//# sourceMappingURL=index.js.map
`,
			want: `import { helper } from './util.mjs';
import * as dir from './dir/index.mjs';
import data from './data.json';
export * from './util.mjs';
const lazy = () => import('./dir/index.mjs');
import pkg from 'esm-lib';
import missing from './missing.js';
export * from './esm.mjs';
const old = () => import('./old.cjs');
//# sourceMappingURL=index.mjs.map
`,
		},
		{
			name: "commonjs",
			bt:   transform.CommonJS,
			input: `"use strict";
Object.defineProperty(exports, "__esModule", { value: true });
const util_js_1 = require("./util.js");
const dir = require("./dir/");
const lib = require("cjs-lib");
const old = require("./old.cjs");
const esm = import("./esm.mjs");
//# sourceMappingURL=index.js.map
`,
			want: `"use strict";
Object.defineProperty(exports, "__esModule", { value: true });
const util_js_1 = require("./util.cjs");
const dir = require("./dir/index.cjs");
const lib = require("cjs-lib");
const old = require("./old.cjs");
const esm = import("./esm.mjs");
//# sourceMappingURL=index.cjs.map
`,
		},
	}

	mfs := newProject()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transform.Transform(mfs, outputFile, sourceFile, tt.input, tt.bt, false)
			if err != nil {
				t.Fatalf("Transform failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Transform mismatch\ngot:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestTransformUnresolvedWarnsWhenVerbose(t *testing.T) {
	input := "import missing from './missing.js';\n"
	for _, verbose := range []bool{false, true} {
		log := &recordingLogger{}
		tr := transform.New(newProject(), nil, transform.Options{BuildType: transform.Module, Verbose: verbose, Logger: log})
		got, err := tr.Transform(outputFile, sourceFile, input)
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}
		if got != input {
			t.Errorf("unresolved specifier should pass through, got %q", got)
		}
		if verbose != (len(log.warnings) == 1) {
			t.Errorf("verbose=%v: got warnings %v", verbose, log.warnings)
		}
	}
}

func TestTransformInterop(t *testing.T) {
	input := `import lib, { named, other } from 'cjs-lib';
import legacy from './legacy.cjs';
import esm from 'esm-lib';
import { named as n } from 'cjs-lib';
//# sourceMappingURL=index.js.map
`

	t.Run("default imports", func(t *testing.T) {
		log := &recordingLogger{}
		tr := transform.New(newProject(), nil, transform.Options{BuildType: transform.Module, Logger: log})
		got, err := tr.Transform(outputFile, sourceFile, input)
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}
		want := `import lib__cjs, { named, other } from 'cjs-lib'; const lib = __importDefault(lib__cjs);
import legacy__cjs from './legacy.cjs'; const legacy = __importDefault(legacy__cjs);
import esm from 'esm-lib';
import { named as n } from 'cjs-lib';
function __importDefault(mod) { return mod && mod.__esModule ? mod.default : mod; }
//# sourceMappingURL=index.mjs.map
`
		if got != want {
			t.Errorf("Transform mismatch\ngot:\n%s\nwant:\n%s", got, want)
		}
		if len(log.warnings) != 1 || !strings.Contains(log.warnings[0], "does not provide an export named 'other'") {
			t.Errorf("expected one import-not-defined warning, got %v", log.warnings)
		}
	})

	t.Run("named shims", func(t *testing.T) {
		tr := transform.New(newProject(), nil, transform.Options{BuildType: transform.Module, Shims: true})
		got, err := tr.Transform(outputFile, sourceFile, input)
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}
		want := `import lib__cjs from 'cjs-lib'; const lib = __importDefault(lib__cjs); const { named, other } = lib__cjs;
import legacy__cjs from './legacy.cjs'; const legacy = __importDefault(legacy__cjs);
import esm from 'esm-lib';
import { named as n } from 'cjs-lib';
function __importDefault(mod) { return mod && mod.__esModule ? mod.default : mod; }
//# sourceMappingURL=index.mjs.map
`
		if got != want {
			t.Errorf("Transform mismatch\ngot:\n%s\nwant:\n%s", got, want)
		}
	})

	t.Run("named shims without default", func(t *testing.T) {
		tr := transform.New(newProject(), nil, transform.Options{BuildType: transform.Module, Shims: true})
		got, err := tr.Transform(outputFile, sourceFile, "import { other as o } from \"cjs-lib\";\n")
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}
		want := "import __cjs_lib__cjs from \"cjs-lib\"; const { other: o } = __cjs_lib__cjs;\n"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("named shims reuse of a specifier", func(t *testing.T) {
		tr := transform.New(newProject(), nil, transform.Options{BuildType: transform.Module, Shims: true})
		input := "import { other } from 'cjs-lib';\nimport { more as m } from 'cjs-lib';\n"
		got, err := tr.Transform(outputFile, sourceFile, input)
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}
		want := "import __cjs_lib__cjs from 'cjs-lib'; const { other } = __cjs_lib__cjs;\n" +
			"import __cjs_lib__cjs1 from 'cjs-lib'; const { more: m } = __cjs_lib__cjs1;\n"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("commonjs output is untouched", func(t *testing.T) {
		input := "const lib = __importDefault(require(\"cjs-lib\"));\n"
		got, err := transform.Transform(newProject(), outputFile, sourceFile, input, transform.CommonJS, false)
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}
		if got != input {
			t.Errorf("got %q", got)
		}
	})
}

func TestTransformPathShims(t *testing.T) {
	tests := []struct {
		name  string
		bt    transform.BuildType
		input string
		want  string
	}{
		{
			name:  "esm prelude",
			bt:    transform.Module,
			input: "console.log(__dirname);\n",
			want: `import { fileURLToPath as __duetFileURLToPath } from "node:url"; ` +
				`import { dirname as __duetDirname } from "node:path"; ` +
				`const __filename = __duetFileURLToPath(import.meta.url); ` +
				`const __dirname = __duetDirname(__filename); console.log(__dirname);` + "\n",
		},
		{
			name:  "esm prelude after hashbang",
			bt:    transform.Module,
			input: "#!/usr/bin/env node\nconsole.log(__filename);\n",
			want: "#!/usr/bin/env node\n" +
				`import { fileURLToPath as __duetFileURLToPath } from "node:url"; ` +
				`import { dirname as __duetDirname } from "node:path"; ` +
				`const __filename = __duetFileURLToPath(import.meta.url); ` +
				`const __dirname = __duetDirname(__filename); console.log(__filename);` + "\n",
		},
		{
			name:  "esm prelude before destructured import",
			bt:    transform.Module,
			input: "import { missing } from 'cjs-lib';\nconsole.log(__dirname, missing);\n",
			want: `import { fileURLToPath as __duetFileURLToPath } from "node:url"; ` +
				`import { dirname as __duetDirname } from "node:path"; ` +
				`const __filename = __duetFileURLToPath(import.meta.url); ` +
				`const __dirname = __duetDirname(__filename); ` +
				"import __cjs_lib__cjs from 'cjs-lib'; const { missing } = __cjs_lib__cjs;\n" +
				"console.log(__dirname, missing);\n",
		},
		{
			name:  "esm declared locally",
			bt:    transform.Module,
			input: "const __dirname = '.';\nconsole.log(__dirname);\n",
			want:  "const __dirname = '.';\nconsole.log(__dirname);\n",
		},
		{
			name:  "esm without path globals",
			bt:    transform.Module,
			input: "console.log(import.meta.url);\n",
			want:  "console.log(import.meta.url);\n",
		},
		{
			name:  "commonjs import.meta",
			bt:    transform.CommonJS,
			input: "const url = import.meta.url;\nconst dir = import.meta.dirname;\n",
			want:  "const url = require(\"node:url\").pathToFileURL(__filename).href;\nconst dir = __dirname;\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := transform.New(newProject(), nil, transform.Options{BuildType: tt.bt, Shims: true})
			got, err := tr.Transform(outputFile, sourceFile, tt.input)
			if err != nil {
				t.Fatalf("Transform failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got:\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestTransformDeclaration(t *testing.T) {
	input := `import type { Shape } from './types.js';
export * from './util.js';
export declare function load(): Promise<typeof import('./dir')>;
//# sourceMappingURL=index.d.ts.map
`
	want := `import type { Shape } from './types.js';
export * from './util.mjs';
export declare function load(): Promise<typeof import('./dir/index.mjs')>;
//# sourceMappingURL=index.d.mts.map
`
	got, err := transform.Transform(newProject(), "/project/dist/index.d.ts", sourceFile, input, transform.Module, false)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if got != want {
		t.Errorf("Transform mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestTransformSourceMaps(t *testing.T) {
	input := `{"version":3,"file":"index.d.ts","sourceRoot":"","sources":["../src/index.ts"],"names":[],"mappings":"AAAA"}`
	want := `{"version":3,"file":"index.d.cts","sourceRoot":"","sources":["../src/index.ts"],"names":[],"mappings":"AAAA"}`

	got, err := transform.Transform(newProject(), "/project/dist/index.d.ts.map", sourceFile, input, transform.CommonJS, false)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	got, err = transform.Transform(newProject(), "/project/dist/index.js.map", sourceFile, `{"version":3,"file":"index.js","mappings":""}`, transform.Module, false)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if !strings.Contains(got, `"file":"index.mjs"`) {
		t.Errorf("file not renamed: %s", got)
	}

	if _, err := transform.Transform(newProject(), "/project/dist/index.js.map", sourceFile, `{"file":`, transform.Module, false); err == nil {
		t.Error("expected error for malformed source map")
	}
}

func TestOutputExcluded(t *testing.T) {
	exclude, err := transform.NewMatcher("/project", []string{"dist/vendor/**"})
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}
	tr := transform.New(newProject(), nil, transform.Options{BuildType: transform.Module, Exclude: exclude})

	input := "import './util.js';\n"
	name, text, err := tr.Output("/project/dist/vendor/lib.js", "/project/src/vendor/lib.ts", input)
	if err != nil {
		t.Fatalf("Output failed: %v", err)
	}
	if name != "/project/dist/vendor/lib.mjs" || text != input {
		t.Errorf("Output = %q, %q", name, text)
	}

	name, text, err = tr.Output(outputFile, sourceFile, input)
	if err != nil {
		t.Fatalf("Output failed: %v", err)
	}
	if name != "/project/dist/index.mjs" || text != "import './util.mjs';\n" {
		t.Errorf("Output = %q, %q", name, text)
	}
}

func TestTransformRedirects(t *testing.T) {
	mfs := newProject()
	resolver := resolve.New(mfs).WithRedirects([]resolve.Redirect{
		{SourceRoot: "/other/src", OutDir: "/other/dist"},
	})
	tr := transform.New(mfs, resolver, transform.Options{BuildType: transform.CommonJS})

	got, err := tr.Transform(outputFile, sourceFile, "const lib = require(\"../../other/src/lib.js\");\n")
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if want := "const lib = require(\"../../other/dist/lib.cjs\");\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
