// Copyright 2023 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package localrepo_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"

	"github.com/abcxyz/benchbot/pkg/localrepo"
)

func newTestRepo(t *testing.T) *localrepo.Repo {
	t.Helper()

	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}

	r, err := localrepo.Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return r
}

func TestWriteFileThenReadFile(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)

	if err := r.WriteFile("nested/dir/hello.txt", []byte("hello\n")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := r.ReadFile("nested/dir/hello.txt")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "hello\n" {
		t.Errorf("ReadFile() = %q, want %q", got, "hello\n")
	}
}

func TestWriteFileRejectsParentDirComponent(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)

	err := r.WriteFile("../escape.txt", []byte("x"))
	if !errors.Is(err, localrepo.ErrParentDirComponent) {
		t.Fatalf("WriteFile() error = %v, want ErrParentDirComponent", err)
	}
}

func TestWriteFileRejectsSymlinkEscape(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	outside := t.TempDir()

	if err := os.Symlink(outside, filepath.Join(r.Dir, "escape-link")); err != nil {
		t.Fatalf("Symlink() error = %v", err)
	}

	err := r.WriteFile("escape-link/file.txt", []byte("x"))
	if !errors.Is(err, localrepo.ErrPathEscapesRoot) {
		t.Fatalf("WriteFile() error = %v, want ErrPathEscapesRoot", err)
	}
}

func TestReadFileRejectsParentDirComponent(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)

	_, err := r.ReadFile("a/../../etc/passwd")
	if !errors.Is(err, localrepo.ErrParentDirComponent) {
		t.Fatalf("ReadFile() error = %v, want ErrParentDirComponent", err)
	}
}

func TestListFilesIsSingleLevelAndSkipsGitDir(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	if err := r.WriteFile("a.txt", []byte("a")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := r.WriteFile("sub/b.txt", []byte("b")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	entries, err := r.ListFiles("")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}

	var aEntry, subEntry *localrepo.Entry
	for i, e := range entries {
		if e.Path == ".git" {
			t.Errorf("ListFiles() leaked .git directory: %+v", e)
		}
		if e.Path == "a.txt" {
			aEntry = &entries[i]
		}
		if e.Path == "sub" {
			subEntry = &entries[i]
		}
		if e.Path == "sub/b.txt" {
			t.Errorf("ListFiles() recursed into sub/, should be single-level: %+v", e)
		}
	}
	if aEntry == nil {
		t.Fatal("ListFiles() missing a.txt")
	}
	if !aEntry.IsFile || aEntry.IsDir || aEntry.IsSymlink {
		t.Errorf("a.txt entry = %+v, want IsFile only", aEntry)
	}
	if subEntry == nil {
		t.Fatal("ListFiles() missing sub")
	}
	if !subEntry.IsDir || subEntry.IsFile || subEntry.IsSymlink {
		t.Errorf("sub entry = %+v, want IsDir only", subEntry)
	}

	subEntries, err := r.ListFiles("sub")
	if err != nil {
		t.Fatalf("ListFiles(sub) error = %v", err)
	}
	if len(subEntries) != 1 || subEntries[0].Path != "sub/b.txt" {
		t.Errorf("ListFiles(sub) = %+v, want exactly [sub/b.txt]", subEntries)
	}
}
