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

// Package version provides the version command for duet.
package version

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"bennypowers.dev/duet/compiler"
	"bennypowers.dev/duet/internal/version"
)

// Cmd is the version command.
var Cmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print version information for duet.

With --tsc, also report the TypeScript version that command runs and whether
duet supports it.`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	Cmd.Flags().String("tsc", "", "Also report the version of this compiler command")
}

func run(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("error reading format flag: %w", err)
	}
	tscCommand, err := cmd.Flags().GetString("tsc")
	if err != nil {
		return fmt.Errorf("error reading tsc flag: %w", err)
	}

	info := version.Get()
	var checkErr error
	if tscCommand != "" {
		tsc, err := compiler.NewTSC(tscCommand)
		if err != nil {
			return err
		}
		v, err := compiler.CheckVersion(cmd.Context(), tsc)
		if v != nil {
			info.TypeScript = v.String()
		}
		checkErr = err
	}

	switch format {
	case "json":
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling version info: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	case "text":
		fmt.Fprintln(cmd.OutOrStdout(), info)
	default:
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", format)
	}
	return checkErr
}
