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

	"github.com/abcxyz/benchbot/pkg/tomlrewrite"
)

// registerTomlModule registers the "toml" global table, letting a script
// repoint a forked Cargo manifest's path dependencies at the fork's git
// ref before it commits the rewritten manifest.
func registerTomlModule(L *lua.LState) {
	tbl := L.NewTable()
	L.SetFuncs(tbl, map[string]lua.LGFunction{
		"replace_path_dependencies_with_git": tomlReplacePathDependenciesWithGit,
	})
	L.SetGlobal("toml", tbl)
}

// tomlReplacePathDependenciesWithGit implements
// toml.replace_path_dependencies_with_git(manifest, url, branch), returning
// the rewritten manifest.
func tomlReplacePathDependenciesWithGit(L *lua.LState) int {
	manifest := L.CheckString(1)
	url := L.CheckString(2)
	branch := L.CheckString(3)

	rewritten, err := tomlrewrite.ReplacePathDependenciesWithGit([]byte(manifest), url, branch)
	if err != nil {
		L.RaiseError("failed to rewrite manifest: %s", err)
		return 0
	}
	L.Push(lua.LString(rewritten))
	return 1
}
