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
	"os"

	lua "github.com/yuin/gopher-lua"
)

// registerEnvModule registers the "env" global table, letting scripts read
// (never set) ambient environment variables, grounded on the original
// bot's env module.
func registerEnvModule(L *lua.LState) {
	tbl := L.NewTable()
	L.SetFuncs(tbl, map[string]lua.LGFunction{
		"get": envGet,
	})
	L.SetGlobal("env", tbl)
}

// envGet implements env.get(name), returning "" (never an error) for an
// unset variable.
func envGet(L *lua.LState) int {
	name := L.CheckString(1)
	L.Push(lua.LString(os.Getenv(name)))
	return 1
}
