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

// Package checkout manages the on-disk working trees the script runtime
// host operates against: one persistent directory per (repository, issue,
// user) tuple, reused and hard-reset on every job rather than re-cloned
// from scratch.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/abcxyz/benchbot/pkg/job"
)

// ErrNotADirectory is returned when a job's working directory path exists
// but is not a directory — the manager refuses to touch it rather than
// guessing at intent.
var ErrNotADirectory = errors.New("working directory path exists and is not a directory")

// CheckedOut is a job's working tree, reset to the pull request's head
// revision and ready for the script runtime host to operate on.
type CheckedOut struct {
	Job  job.Job
	Dir  string
	Repo *git.Repository
	Head plumbing.Hash
}

// Manager clones, opens, and resets the working trees jobs run against.
type Manager struct {
	ReposRoot string
}

// NewManager returns a [Manager] rooted at reposRoot.
func NewManager(reposRoot string) *Manager {
	return &Manager{ReposRoot: reposRoot}
}

// WorkingDir returns the directory a job's working tree lives in.
func (m *Manager) WorkingDir(j job.Job) string {
	return filepath.Join(m.ReposRoot, j.WorkingDirName())
}

// Checkout clones (if the working directory does not yet exist) or opens
// (if it does) a job's repository, fetches the pull request's head
// revision, and hard-resets the worktree to it. installationToken
// authenticates the fetch for private repositories; pass "" for public
// repositories.
func (m *Manager) Checkout(ctx context.Context, j job.Job, installationToken string) (*CheckedOut, error) {
	dir := m.WorkingDir(j)

	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, dir)

	case err == nil:
		repo, err := git.PlainOpen(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open existing working tree at %s: %w", dir, err)
		}
		return m.resetToPullHead(ctx, j, dir, repo, installationToken)

	case os.IsNotExist(err):
		repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:  j.Repository.CloneURL,
			Auth: auth(installationToken),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to clone %s into %s: %w", j.Repository.CloneURL, dir, err)
		}
		return m.resetToPullHead(ctx, j, dir, repo, installationToken)

	default:
		return nil, fmt.Errorf("failed to stat working directory %s: %w", dir, err)
	}
}

// auth returns an http.BasicAuth good for any GitHub installation token, or
// nil (anonymous) if token is empty.
func auth(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: token,
	}
}

// resetToPullHead fetches the pull request's head ref and hard-resets the
// worktree to it, removing untracked files and directories left over from a
// prior run. Files matched by .gitignore are not removed.
func (m *Manager) resetToPullHead(ctx context.Context, j job.Job, dir string, repo *git.Repository, installationToken string) (*CheckedOut, error) {
	localRef := plumbing.NewBranchReferenceName(j.PullBranch())
	remoteSpec := config.RefSpec(fmt.Sprintf("refs/pull/%d/head:%s", j.Issue.Number, localRef))

	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{remoteSpec},
		Auth:       auth(installationToken),
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("failed to fetch pull request head for issue %d: %w", j.Issue.Number, err)
	}

	ref, err := repo.Reference(localRef, true)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fetched ref %s: %w", localRef, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree at %s: %w", dir, err)
	}

	if err := worktree.Reset(&git.ResetOptions{
		Commit: ref.Hash(),
		Mode:   git.HardReset,
	}); err != nil {
		return nil, fmt.Errorf("failed to hard-reset worktree to %s: %w", ref.Hash(), err)
	}

	if err := worktree.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return nil, fmt.Errorf("failed to clean worktree: %w", err)
	}

	return &CheckedOut{
		Job:  j,
		Dir:  dir,
		Repo: repo,
		Head: ref.Hash(),
	}, nil
}
