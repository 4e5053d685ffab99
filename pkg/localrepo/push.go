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

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Push pushes the local branch localRef to remoteRef on origin,
// authenticating with an installation access token minted fresh for this
// call. Scripts never see tokens directly; the host mints one per git
// operation rather than caching one.
func (r *Repo) Push(ctx context.Context, installationToken, localRef, remoteRef string) error {
	spec := config.RefSpec(fmt.Sprintf("%s:%s",
		plumbing.NewBranchReferenceName(localRef),
		plumbing.NewBranchReferenceName(remoteRef)))

	err := r.Repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{spec},
		Auth: &githttp.BasicAuth{
			Username: "x-access-token",
			Password: installationToken,
		},
		Force: true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push %s to %s: %w", localRef, remoteRef, err)
	}
	return nil
}
