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

package localrepo

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Add stages path, rejecting one that escapes the working tree before it
// is handed to git.
func (r *Repo) Add(path string) error {
	if _, err := r.resolve(path); err != nil {
		return err
	}
	wt, err := r.Repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}
	if _, err := wt.Add(path); err != nil {
		return fmt.Errorf("failed to stage %s: %w", path, err)
	}
	return nil
}

// AddAll stages every path in paths.
func (r *Repo) AddAll(paths []string) error {
	for _, p := range paths {
		if err := r.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// Commit creates a commit of the current index on top of HEAD, signed as
// r.Author, and returns its hash.
func (r *Repo) Commit(message string) (plumbing.Hash, error) {
	wt, err := r.Repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to open worktree: %w", err)
	}

	sig := r.Author
	sig.When = commitTime()

	hash, err := wt.Commit(message, &git.CommitOptions{Author: &sig})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to commit: %w", err)
	}
	return hash, nil
}

// commitTime is a seam so tests can pin the commit timestamp; production
// always wants the real wall clock.
var commitTime = time.Now

// Branch force-creates (or overwrites, if it already exists) a local branch
// named name pointing at commit.
func (r *Repo) Branch(name string, commit plumbing.Hash) error {
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), commit)
	if err := r.Repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("failed to set branch %s to %s: %w", name, commit, err)
	}
	return nil
}

// Head returns the working tree's current HEAD commit.
func (r *Repo) Head() (*object.Commit, error) {
	ref, err := r.Repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	commit, err := r.Repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD commit %s: %w", ref.Hash(), err)
	}
	return commit, nil
}
