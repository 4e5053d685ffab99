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

const statusTypeName = "status"

// registerStatusType registers the "status" userdata type returned by
// repo:status().
func registerStatusType(L *lua.LState) {
	mt := L.NewTypeMetatable(statusTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"changed": statusPaths((*localrepo.Status).Changed),
		"added":   statusPaths((*localrepo.Status).Added),
		"deleted": statusPaths((*localrepo.Status).Deleted),
	}))
}

func newStatusUserData(L *lua.LState, s *localrepo.Status) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = s
	L.SetMetatable(ud, L.GetTypeMetatable(statusTypeName))
	return ud
}

func statusPaths(get func(*localrepo.Status) []string) lua.LGFunction {
	return func(L *lua.LState) int {
		ud, ok := L.CheckUserData(1).Value.(*localrepo.Status)
		if !ok {
			L.ArgError(1, "status expected")
			return 0
		}
		out := L.NewTable()
		for _, p := range get(ud) {
			out.Append(lua.LString(p))
		}
		L.Push(out)
		return 1
	}
}
