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
package resolve

import "strings"

// builtinModules lists Node.js core modules, top-level names only.
// Generated with:
//
//	node -p "require('module').builtinModules.filter(m => !m.startsWith('_') && !m.includes('/')).join('\n')"
var builtinModules = map[string]bool{
	"assert":              true,
	"async_hooks":         true,
	"buffer":              true,
	"child_process":       true,
	"cluster":             true,
	"console":             true,
	"constants":           true,
	"crypto":              true,
	"dgram":               true,
	"diagnostics_channel": true,
	"dns":                 true,
	"domain":              true,
	"events":              true,
	"fs":                  true,
	"http":                true,
	"http2":               true,
	"https":               true,
	"inspector":           true,
	"module":              true,
	"net":                 true,
	"os":                  true,
	"path":                true,
	"perf_hooks":          true,
	"process":             true,
	"punycode":            true,
	"querystring":         true,
	"readline":            true,
	"repl":                true,
	"stream":              true,
	"string_decoder":      true,
	"sys":                 true,
	"timers":              true,
	"tls":                 true,
	"trace_events":        true,
	"tty":                 true,
	"url":                 true,
	"util":                true,
	"v8":                  true,
	"vm":                  true,
	"wasi":                true,
	"worker_threads":      true,
	"zlib":                true,
}

// prefixOnlyBuiltins are only reachable with the node: scheme.
var prefixOnlyBuiltins = map[string]bool{
	"sea":    true,
	"sqlite": true,
	"test":   true,
}

// IsBuiltin reports whether specifier names a Node.js core module, with or
// without the node: scheme, including subpaths such as "fs/promises".
func IsBuiltin(specifier string) bool {
	name, prefixed := strings.CutPrefix(specifier, "node:")
	if base, _, found := strings.Cut(name, "/"); found {
		name = base
	}
	if prefixed && prefixOnlyBuiltins[name] {
		return true
	}
	return builtinModules[name]
}
