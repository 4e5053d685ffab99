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
	"sort"

	"github.com/go-git/go-git/v5"
)

// Status is a snapshot of the working tree's modifications relative to
// HEAD. Its filters look at each path's working-tree status only; the
// staging-area status is not consulted.
type Status struct {
	raw git.Status
}

// Status computes the current working tree status.
func (r *Repo) Status() (*Status, error) {
	wt, err := r.Repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	raw, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to compute status: %w", err)
	}
	return &Status{raw: raw}, nil
}

// Changed returns paths modified, renamed, or updated-but-unmerged in the
// working tree.
func (s *Status) Changed() []string {
	return s.filter(func(fs *git.FileStatus) bool {
		return fs.Worktree == git.Modified || fs.Worktree == git.Renamed || fs.Worktree == git.UpdatedButUnmerged
	})
}

// Added returns paths new in the working tree (untracked).
func (s *Status) Added() []string {
	return s.filter(func(fs *git.FileStatus) bool {
		return fs.Worktree == git.Untracked || fs.Worktree == git.Added
	})
}

// Deleted returns paths removed from the working tree.
func (s *Status) Deleted() []string {
	return s.filter(func(fs *git.FileStatus) bool {
		return fs.Worktree == git.Deleted
	})
}

func (s *Status) filter(match func(*git.FileStatus) bool) []string {
	var out []string
	for path, fs := range s.raw {
		if match(fs) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// ListModified returns every path with any non-unmodified status, staged or
// not — a convenience distinct from the finer-grained Status groupings.
func (r *Repo) ListModified() ([]string, error) {
	wt, err := r.Repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	raw, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to compute status: %w", err)
	}
	var out []string
	for path, fs := range raw {
		if fs.Staging == git.Unmodified && fs.Worktree == git.Unmodified {
			continue
		}
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}
