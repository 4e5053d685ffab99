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

// Package localrepo wraps a single on-disk git working tree with the file
// and commit operations the script runtime host exposes to scripts as the
// "repo" global and as the result of Git.clone(). Every path a script
// passes in is validated against Dir before it ever reaches the
// filesystem.
package localrepo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrPathEscapesRoot is returned when a script-supplied path would resolve
// outside the repository's root directory.
var ErrPathEscapesRoot = errors.New("path leads outside repository root")

// ErrParentDirComponent is returned when a script-supplied path contains a
// literal ".." component. Checked before normalization so the rejection
// message names the exact offending string a script handed us.
var ErrParentDirComponent = errors.New("no `../` allowed in path names")

// Repo is a single checked-out git working tree plus the identity new
// commits are signed with.
type Repo struct {
	Dir    string
	Repo   *git.Repository
	Author object.Signature
}

// DefaultAuthorName and DefaultAuthorEmail sign commits when a job's
// configuration leaves the commit identity unset.
const (
	DefaultAuthorName  = "benchbot (TODO: changeme)"
	DefaultAuthorEmail = "benchbot@example.com"
)

// Open opens an existing git working tree at dir.
func Open(dir string) (*Repo, error) {
	gitRepo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", dir, err)
	}
	return &Repo{
		Dir:  dir,
		Repo: gitRepo,
		Author: object.Signature{
			Name:  DefaultAuthorName,
			Email: DefaultAuthorEmail,
		},
	}, nil
}

// WithAuthor returns a copy of r that signs commits as name/email.
func (r *Repo) WithAuthor(name, email string) *Repo {
	out := *r
	if name != "" {
		out.Author.Name = name
	}
	if email != "" {
		out.Author.Email = email
	}
	return &out
}

// rejectParentDir rejects any path containing a literal ".." component,
// before it is joined to Dir or canonicalized. Checked independently of
// (and before) the canonicalize-based escape check below, producing a
// distinct and more specific error.
func rejectParentDir(path string) error {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("%w: %s", ErrParentDirComponent, path)
		}
	}
	return nil
}

// resolve validates a script-supplied path and returns its absolute
// location on disk. It never trusts the path alone: after rejecting ".."
// components outright, it joins to Dir, canonicalizes symlinks away, and
// requires the result to still be rooted under Dir.
func (r *Repo) resolve(path string) (string, error) {
	if err := rejectParentDir(path); err != nil {
		return "", err
	}

	joined := path
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(r.Dir, path)
	}

	root, err := filepath.EvalSymlinks(r.Dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve repository root: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if os.IsNotExist(err) {
			// The file (and possibly some of its parent directories)
			// doesn't exist yet (a pending write): canonicalize the nearest
			// existing ancestor instead and re-append the missing tail.
			existing, tail := filepath.Dir(joined), filepath.Base(joined)
			parent, evalErr := filepath.EvalSymlinks(existing)
			for os.IsNotExist(evalErr) && existing != filepath.Dir(existing) {
				tail = filepath.Join(filepath.Base(existing), tail)
				existing = filepath.Dir(existing)
				parent, evalErr = filepath.EvalSymlinks(existing)
			}
			if evalErr != nil {
				return "", fmt.Errorf("failed to resolve parent of %s: %w", path, evalErr)
			}
			resolved = filepath.Join(parent, tail)
		} else {
			return "", fmt.Errorf("failed to resolve %s: %w", path, err)
		}
	}

	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, path)
	}

	return resolved, nil
}

// ReadFile reads a file from the working tree.
func (r *Repo) ReadFile(path string) ([]byte, error) {
	full, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return b, nil
}

// WriteFile writes a file to the working tree, creating parent directories
// as needed.
func (r *Repo) WriteFile(path string, contents []byte) error {
	full, err := r.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directories for %s: %w", path, err)
	}
	if err := os.WriteFile(full, contents, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Entry describes one entry discovered by ListFiles, relative to Dir.
type Entry struct {
	Path      string
	IsFile    bool
	IsDir     bool
	IsSymlink bool
}

// ListFiles lists the immediate contents of dir (a path relative to Dir; ""
// lists Dir itself). It is not recursive: a subdirectory is reported as a
// single Entry, never descended into.
func (r *Repo) ListFiles(dir string) ([]Entry, error) {
	full := r.Dir
	if dir != "" {
		resolved, err := r.resolve(dir)
		if err != nil {
			return nil, err
		}
		full = resolved
	}

	dirEntries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("failed to list files under %s: %w", full, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.Name() == ".git" {
			continue
		}
		rel, err := filepath.Rel(r.Dir, filepath.Join(full, de.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to relativize %s: %w", de.Name(), err)
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", de.Name(), err)
		}
		entries = append(entries, Entry{
			Path:      filepath.ToSlash(rel),
			IsFile:    info.Mode().IsRegular(),
			IsDir:     info.IsDir(),
			IsSymlink: info.Mode()&os.ModeSymlink != 0,
		})
	}
	return entries, nil
}
