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
	"github.com/google/go-github/v61/github"
	lua "github.com/yuin/gopher-lua"
)

const issueTypeName = "issue"

// registerIssueType registers the "issue" userdata type and its methods.
func registerIssueType(L *lua.LState, h *Host) {
	mt := L.NewTypeMetatable(issueTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"comment": issueComment(h),
	}))
}

func newIssueUserData(L *lua.LState, h *Host) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = h
	L.SetMetatable(ud, L.GetTypeMetatable(issueTypeName))
	return ud
}

// issueComment implements issue:comment(body): posts a comment on the
// triggering issue, minting a fresh installation token for the call.
func issueComment(h *Host) lua.LGFunction {
	return func(L *lua.LState) int {
		body := L.CheckString(2)

		client, err := h.Broker.RESTClient(L.Context(), h.InstallationID)
		if err != nil {
			L.RaiseError("failed to authenticate to GitHub: %s", err)
			return 0
		}

		_, _, err = client.Issues.CreateComment(L.Context(),
			h.Job.Repository.Owner.Login, h.Job.Repository.Name, h.Job.Issue.Number,
			&github.IssueComment{Body: github.String(body)})
		if err != nil {
			L.RaiseError("failed to create comment: %s", err)
			return 0
		}
		return 0
	}
}
