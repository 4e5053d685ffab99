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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Cloner clones or reopens arbitrary "owner/name" repositories under a
// shared root directory, backing the script runtime host's Git.clone()
// factory — distinct from the Checkout Manager, which only ever manages the
// single repository a job was dispatched against.
type Cloner struct {
	Root string
}

// NewCloner returns a [Cloner] rooted at root.
func NewCloner(root string) *Cloner {
	return &Cloner{Root: root}
}

// Clone clones (or opens, if already present) ownerRepo ("owner/name") and
// checks out head, then returns a [Repo] bound to it. The local directory
// is named after ownerRepo with the slash flattened to an underscore.
func (c *Cloner) Clone(ctx context.Context, ownerRepo, head, installationToken string) (*Repo, error) {
	parts := strings.SplitN(ownerRepo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid repository %q, want \"owner/name\"", ownerRepo)
	}

	url := fmt.Sprintf("https://github.com/%s.git", ownerRepo)
	dir := filepath.Join(c.Root, cloneDirName(ownerRepo))

	auth := authMethod(installationToken)

	info, err := os.Stat(dir)
	var gitRepo *git.Repository
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("%s exists and is not a directory", dir)
	case err == nil:
		gitRepo, err = git.PlainOpen(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open existing clone at %s: %w", dir, err)
		}
	case os.IsNotExist(err):
		gitRepo, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: url, Auth: auth})
		if err != nil {
			return nil, fmt.Errorf("failed to clone %s into %s: %w", url, dir, err)
		}
	default:
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}

	r := &Repo{
		Dir:  dir,
		Repo: gitRepo,
		Author: object.Signature{
			Name:  DefaultAuthorName,
			Email: DefaultAuthorEmail,
		},
	}
	if err := r.checkoutRemoteHead(ctx, head, auth); err != nil {
		return nil, err
	}
	return r, nil
}

// cloneDirName is the local directory name Clone uses for ownerRepo
// ("owner/name"): the "/" flattened to "_".
func cloneDirName(ownerRepo string) string {
	return strings.ReplaceAll(ownerRepo, "/", "_")
}

// authMethod returns an http.BasicAuth good for any GitHub installation
// token, or nil (anonymous) if token is empty.
func authMethod(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: token}
}

// checkoutRemoteHead fetches head and hard-resets the worktree to it,
// mirroring Git::clone's post-clone checkout_remote_head call.
func (r *Repo) checkoutRemoteHead(ctx context.Context, head string, auth transport.AuthMethod) error {
	localRef := plumbing.NewBranchReferenceName(head)
	spec := config.RefSpec(fmt.Sprintf("refs/heads/%s:%s", head, localRef))

	err := r.Repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{spec},
		Auth:       auth,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch %s: %w", head, err)
	}

	ref, err := r.Repo.Reference(localRef, true)
	if err != nil {
		return fmt.Errorf("failed to resolve fetched ref %s: %w", localRef, err)
	}

	wt, err := r.Repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree at %s: %w", r.Dir, err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: ref.Hash(), Mode: git.HardReset}); err != nil {
		return fmt.Errorf("failed to hard-reset worktree to %s: %w", ref.Hash(), err)
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("failed to clean worktree: %w", err)
	}
	return nil
}
