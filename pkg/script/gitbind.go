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

package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/abcxyz/benchbot/pkg/localrepo"
)

// registerGitType registers the "Git" global table, whose clone() factory
// lets a script check out a repository other than the one it was
// dispatched against.
func registerGitType(L *lua.LState, h *Host) {
	tbl := L.NewTable()
	L.SetFuncs(tbl, map[string]lua.LGFunction{
		"clone": gitClone(h),
	})
	L.SetGlobal("Git", tbl)
}

// gitClone implements Git.clone(owner_repo, head), returning a "repo"
// userdata bound to the freshly cloned working tree.
func gitClone(h *Host) lua.LGFunction {
	return func(L *lua.LState) int {
		ownerRepo := L.CheckString(1)
		head := L.CheckString(2)

		token, err := h.Broker.InstallationToken(L.Context(), h.InstallationID)
		if err != nil {
			L.RaiseError("failed to authenticate to GitHub: %s", err)
			return 0
		}

		cloner := localrepo.NewCloner(h.ClonesRoot)
		r, err := cloner.Clone(L.Context(), ownerRepo, head, token)
		if err != nil {
			L.RaiseError("failed to clone %s: %s", ownerRepo, err)
			return 0
		}
		if h.CommitAuthorName != "" || h.CommitAuthorEmail != "" {
			r = r.WithAuthor(h.CommitAuthorName, h.CommitAuthorEmail)
		}

		L.Push(newRepoUserData(L, r))
		return 1
	}
}
