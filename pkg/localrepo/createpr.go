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
	"fmt"

	"github.com/google/go-github/v61/github"
)

// CreatePR opens a pull request from head into base, using client (already
// scoped to the job's installation by the credential broker). It talks to
// the GitHub REST API directly rather than shelling out to git.
func CreatePR(ctx context.Context, client *github.Client, owner, name, title, body, head, base string) (*github.PullRequest, error) {
	pr, _, err := client.PullRequests.Create(ctx, owner, name, &github.NewPullRequest{
		Title: github.String(title),
		Body:  github.String(body),
		Head:  github.String(head),
		Base:  github.String(base),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request %s/%s %s->%s: %w", owner, name, head, base, err)
	}
	return pr, nil
}
