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

import (
	"fmt"
	"strings"
)

// Kind classifies a resolution failure.
type Kind int

const (
	InvalidModuleSpecifier Kind = iota + 1
	UnsupportedDirectoryImport
	ModuleNotFound
	InvalidPackageConfiguration
	InvalidPackageTarget
	PackagePathNotExported
)

// String returns the Node.js error code for the kind.
func (k Kind) String() string {
	switch k {
	case InvalidModuleSpecifier:
		return "ERR_INVALID_MODULE_SPECIFIER"
	case UnsupportedDirectoryImport:
		return "ERR_UNSUPPORTED_DIR_IMPORT"
	case ModuleNotFound:
		return "ERR_MODULE_NOT_FOUND"
	case InvalidPackageConfiguration:
		return "ERR_INVALID_PACKAGE_CONFIG"
	case InvalidPackageTarget:
		return "ERR_INVALID_PACKAGE_TARGET"
	case PackagePathNotExported:
		return "ERR_PACKAGE_PATH_NOT_EXPORTED"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinels for errors.Is. Any *Error of the same Kind matches.
var (
	ErrInvalidModuleSpecifier      = &Error{Kind: InvalidModuleSpecifier}
	ErrUnsupportedDirectoryImport  = &Error{Kind: UnsupportedDirectoryImport}
	ErrModuleNotFound              = &Error{Kind: ModuleNotFound}
	ErrInvalidPackageConfiguration = &Error{Kind: InvalidPackageConfiguration}
	ErrInvalidPackageTarget        = &Error{Kind: InvalidPackageTarget}
	ErrPackagePathNotExported      = &Error{Kind: PackagePathNotExported}
)

// Error is a resolution failure.
type Error struct {
	Kind      Kind
	Specifier string
	Parent    string
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Specifier != "" {
		fmt.Fprintf(&b, ": cannot resolve %q", e.Specifier)
	}
	if e.Parent != "" {
		fmt.Fprintf(&b, " from %s", e.Parent)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, specifier, parent, detail string) *Error {
	return &Error{Kind: kind, Specifier: specifier, Parent: parent, Detail: detail}
}
