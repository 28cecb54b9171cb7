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

// Package version reports how the duet binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set at build time via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitTag    = "unknown"
	BuildTime = "unknown"
	GitDirty  = "" // "dirty" for uncommitted changes
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
	// TypeScript is filled in by callers that ran the compiler.
	TypeScript string `json:"typescript,omitempty"`
}

// Get collects the build information.
func Get() Info {
	return Info{
		Version:   GetVersion(),
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the information for `duet version`.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "duet %s", i.Version)
	if i.GitCommit != "unknown" && i.GitCommit != "" {
		fmt.Fprintf(&b, " (commit: %s)", i.GitCommit)
	}
	fmt.Fprintf(&b, "\n%s %s", i.GoVersion, i.Platform)
	if i.BuildTime != "unknown" && i.BuildTime != "" {
		fmt.Fprintf(&b, ", built %s", i.BuildTime)
	}
	if i.TypeScript != "" {
		fmt.Fprintf(&b, "\nTypeScript %s", i.TypeScript)
	}
	return b.String()
}

// GetVersion prefers ldflags, then module build info, then git metadata.
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "(devel)" && v != "" {
			return v
		}
	}
	if GitTag == "unknown" || GitCommit == "unknown" {
		return "dev"
	}
	v := GitTag
	short := GitCommit
	if len(short) > 7 {
		short = short[:7]
	}
	if short != "" && !strings.HasSuffix(GitTag, short) {
		v += "-" + short
	}
	if GitDirty == "dirty" {
		v += "-dirty"
	}
	return v
}
