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

// Package job defines the data model shared by the ingress, queue, checkout
// manager, and worker loop: the unit of work a single triggering comment
// produces.
package job

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/go-github/v61/github"
)

// ErrMissingRepositoryField is returned when a webhook-delivered repository
// payload is missing a field the rest of the pipeline requires.
var ErrMissingRepositoryField = errors.New("missing required repository field")

// ErrShortCommand is returned when a command has fewer than the two tokens
// (namespace directory, subcommand) a Job requires.
var ErrShortCommand = errors.New("command must have at least a namespace and a subcommand")

// User is the GitHub account that triggered (or owns) a repository.
type User struct {
	Login string
}

// Repository is this package's own view of a GitHub repository. Unlike
// go-github's Repository, Owner and CloneURL are non-optional: a payload
// missing either is rejected before it becomes a Job.
type Repository struct {
	ID       int64
	Name     string
	URL      string
	Owner    User
	CloneURL string
}

// RepositoryFromPayload validates and narrows a go-github webhook
// repository into this package's Repository.
func RepositoryFromPayload(r *github.Repository) (Repository, error) {
	if r == nil {
		return Repository{}, fmt.Errorf("%w: repository", ErrMissingRepositoryField)
	}
	if r.GetOwner() == nil || r.GetOwner().GetLogin() == "" {
		return Repository{}, fmt.Errorf("%w: owner", ErrMissingRepositoryField)
	}
	if r.GetCloneURL() == "" {
		return Repository{}, fmt.Errorf("%w: clone_url", ErrMissingRepositoryField)
	}
	return Repository{
		ID:       r.GetID(),
		Name:     r.GetName(),
		URL:      r.GetHTMLURL(),
		Owner:    User{Login: r.GetOwner().GetLogin()},
		CloneURL: r.GetCloneURL(),
	}, nil
}

// Issue is the pull-request-as-issue a command comment was posted on.
type Issue struct {
	Number int
}

// Job is one dispatched bot command: a script path plus arguments, bound to
// the repository and issue that triggered it.
type Job struct {
	// Command is the token sequence after ingress resolution: element 0 is
	// the resolved ".github/<namespace>/<subcommand>.rhai" script path,
	// remaining elements are the script's arguments.
	Command []string `json:"command"`

	Repository Repository `json:"repository"`
	Issue      Issue      `json:"issue"`

	// TriggeringUser is the comment author. Used only for working-directory
	// naming; scripts authenticate purely via installation tokens, never as
	// this user.
	TriggeringUser User `json:"triggering_user"`

	// InstallationID is the GitHub App installation scoping every token
	// minted on this Job's behalf, captured from the webhook payload's
	// `installation.id` field. The one-shot runner, which has no webhook
	// payload, leaves it zero and passes the ID from its --installation-id
	// flag to the script host directly.
	InstallationID int64 `json:"installation_id"`
}

// Validate enforces that a command has at least a namespace directory and a
// subcommand. Command is in its resolved form, so both live in element 0:
// it must be a script path inside a directory, not a bare token.
func (j Job) Validate() error {
	if len(j.Command) == 0 || filepath.Dir(j.Command[0]) == "." {
		return ErrShortCommand
	}
	return nil
}

// WorkingDirName is the pure function of Job identity the Checkout Manager
// uses to name (and therefore reuse, across repeated invocations) a
// repository's working directory.
func (j Job) WorkingDirName() string {
	return fmt.Sprintf("%d_%d_%s_%s_%s",
		j.Repository.ID, j.Issue.Number, j.TriggeringUser.Login,
		j.Repository.Owner.Login, j.Repository.Name)
}

// PullBranch is the ref the Checkout Manager fetches to reach the pull
// request's head revision.
func (j Job) PullBranch() string {
	return fmt.Sprintf("pull/%d/head", j.Issue.Number)
}
