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

// Package script hosts the Lua runtime a bot command runs in. It exposes
// three globals to every script — "issue", "repo", and the "Git" clone
// factory — plus "cargo", "env", and "toml" builtins, each narrow enough
// that a script can only ever reach the repository it was dispatched
// against or one it explicitly clones.
package script

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/abcxyz/benchbot/pkg/githubauth"
	"github.com/abcxyz/benchbot/pkg/job"
	"github.com/abcxyz/benchbot/pkg/localrepo"
)

// Host runs bot command scripts against a single checked-out repository.
type Host struct {
	// Broker mints a fresh installation token for every GitHub API call a
	// script triggers; the host never caches one across calls.
	Broker *githubauth.Broker

	// InstallationID scopes every token Broker mints for this job.
	InstallationID int64

	// Job is the dispatched command this script is running on behalf of.
	Job job.Job

	// Repo is the checked-out working tree bound to the "repo" global.
	Repo *localrepo.Repo

	// ClonesRoot is where the "Git" global's clone() factory checks out
	// additional repositories, distinct from Repo's own working tree.
	ClonesRoot string

	// CommitAuthorName and CommitAuthorEmail override the default commit
	// identity scripts commit as, when non-empty.
	CommitAuthorName  string
	CommitAuthorEmail string
}

// Run executes the script at scriptPath (relative to Repo's working tree)
// with args bound as the Lua global "args".
func (h *Host) Run(ctx context.Context, scriptPath string, args []string) error {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	argsTable := L.NewTable()
	for _, a := range args {
		argsTable.Append(lua.LString(a))
	}
	L.SetGlobal("args", argsTable)

	repo := h.Repo
	if h.CommitAuthorName != "" || h.CommitAuthorEmail != "" {
		repo = repo.WithAuthor(h.CommitAuthorName, h.CommitAuthorEmail)
	}

	registerIssueType(L, h)
	registerRepoType(L, h)
	registerStatusType(L)
	registerGitType(L, h)
	registerEnvModule(L)
	registerCargoBuiltin(L, h)
	registerTomlModule(L)

	L.SetGlobal("issue", newIssueUserData(L, h))
	L.SetGlobal("repo", newRepoUserData(L, repo))

	full := scriptPath
	if !filepath.IsAbs(full) {
		full = filepath.Join(repo.Dir, scriptPath)
	}

	if err := L.DoFile(full); err != nil {
		return fmt.Errorf("failed to run script: %w", scrubDir(err, repo.Dir))
	}
	return nil
}

// scrubDir replaces every occurrence of dir in err's message with "." so
// internal filesystem layout never leaks into a posted comment.
func scrubDir(err error, dir string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), dir, "."))
}

