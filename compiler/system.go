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
	"path/filepath"
	"runtime"

	duetfs "bennypowers.dev/duet/fs"
)

const utf8BOM = "\ufeff"

// System is the host the build reads and writes through.
type System interface {
	FileExists(path string) bool
	ReadFile(path string) (string, bool)
	WriteFile(path, data string, writeBOM bool) error
	DirectoryExists(path string) bool
	CreateDirectory(path string) error
	UseCaseSensitiveFileNames() bool
	GetCurrentDirectory() string
	NewLine() string
	FS() duetfs.FileSystem
}

type system struct {
	fs  duetfs.FileSystem
	cwd string
}

// NewSystem returns a System backed by fsys, rooted at cwd.
func NewSystem(fsys duetfs.FileSystem, cwd string) System {
	return &system{fs: fsys, cwd: cwd}
}

func (s *system) FS() duetfs.FileSystem { return s.fs }

func (s *system) FileExists(path string) bool {
	return duetfs.IsFile(s.fs, s.abs(path))
}

func (s *system) ReadFile(path string) (string, bool) {
	data, err := s.fs.ReadFile(s.abs(path))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// WriteFile creates missing parent directories.
func (s *system) WriteFile(path, data string, writeBOM bool) error {
	if writeBOM {
		data = utf8BOM + data
	}
	return duetfs.WriteFileAll(s.fs, s.abs(path), []byte(data))
}

func (s *system) DirectoryExists(path string) bool {
	return duetfs.IsDir(s.fs, s.abs(path))
}

func (s *system) CreateDirectory(path string) error {
	return s.fs.MkdirAll(s.abs(path), 0o755)
}

func (s *system) UseCaseSensitiveFileNames() bool {
	return runtime.GOOS != "darwin" && runtime.GOOS != "windows"
}

func (s *system) GetCurrentDirectory() string {
	return s.cwd
}

func (s *system) NewLine() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

func (s *system) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.cwd, path)
}
