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
package fs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bennypowers.dev/duet/fs"
	"bennypowers.dev/duet/internal/mapfs"
)

func TestRemoveAllWithin(t *testing.T) {
	t.Run("outside base fails without touching files", func(t *testing.T) {
		mfs := mapfs.New()
		mfs.AddFile("/project/dist/index.js", "", 0644)
		mfs.AddFile("/other/keep.js", "", 0644)

		for _, target := range []string{"/other", "../other", "/project", ".", "/"} {
			err := fs.RemoveAllWithin(mfs, "/project", target)
			if !errors.Is(err, fs.ErrOutsideBase) {
				t.Errorf("RemoveAllWithin(%q) = %v, want ErrOutsideBase", target, err)
			}
		}

		if !mfs.Exists("/other/keep.js") || !mfs.Exists("/project/dist/index.js") {
			t.Error("files were removed by a rejected call")
		}
	})

	t.Run("nested directory is removed", func(t *testing.T) {
		mfs := mapfs.New()
		mfs.AddFile("/project/dist/esm/a/b.mjs", "", 0644)
		mfs.AddFile("/project/dist/cjs/a.cjs", "", 0644)
		mfs.AddFile("/project/src/a.ts", "", 0644)

		if err := fs.RemoveAllWithin(mfs, "/project", "dist/esm"); err != nil {
			t.Fatalf("RemoveAllWithin failed: %v", err)
		}
		if mfs.Exists("/project/dist/esm") {
			t.Error("dist/esm still exists")
		}
		if !mfs.Exists("/project/dist/cjs/a.cjs") || !mfs.Exists("/project/src/a.ts") {
			t.Error("sibling files were removed")
		}

		if err := fs.RemoveAllWithin(mfs, "/project", "/project/dist"); err != nil {
			t.Fatalf("RemoveAllWithin failed: %v", err)
		}
		if mfs.Exists("/project/dist") {
			t.Error("dist still exists")
		}
	})

	t.Run("host filesystem", func(t *testing.T) {
		base := t.TempDir()
		nested := filepath.Join(base, "out", "deep", "deeper")
		if err := os.MkdirAll(nested, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(nested, "x.cjs"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		osfs := fs.NewOSFileSystem()
		if err := fs.RemoveAllWithin(osfs, base, filepath.Join(base, "..")); !errors.Is(err, fs.ErrOutsideBase) {
			t.Fatalf("expected ErrOutsideBase, got %v", err)
		}
		if err := fs.RemoveAllWithin(osfs, base, "out"); err != nil {
			t.Fatalf("RemoveAllWithin failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(base, "out")); !os.IsNotExist(err) {
			t.Errorf("out still exists: %v", err)
		}
		if _, err := os.Stat(base); err != nil {
			t.Errorf("base was removed: %v", err)
		}
	})
}

func TestWriteFileAll(t *testing.T) {
	base := t.TempDir()
	osfs := fs.NewOSFileSystem()
	target := filepath.Join(base, "a", "b", "c.d.mts")

	if err := fs.WriteFileAll(osfs, target, []byte("export {};\n")); err != nil {
		t.Fatalf("WriteFileAll failed: %v", err)
	}
	if !fs.IsFile(osfs, target) {
		t.Error("expected file to exist")
	}
	if !fs.IsDir(osfs, filepath.Dir(target)) {
		t.Error("expected parent directory to exist")
	}
}
