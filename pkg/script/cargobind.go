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
	shellwords "github.com/mattn/go-shellwords"
	lua "github.com/yuin/gopher-lua"

	"github.com/abcxyz/benchbot/pkg/cargo"
)

const cargoResultTypeName = "cargo_result"

// registerCargoBuiltin registers the "cargo" global function: a script
// writes `cargo("build --release")` and gets back a result it can inspect
// without ever touching a raw exit code. cargo always runs in the job's
// own checked-out working tree.
func registerCargoBuiltin(L *lua.LState, h *Host) {
	mt := L.NewTypeMetatable(cargoResultTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"is_ok":     cargoResultIsOK,
		"stdout":    cargoResultStdout,
		"stderr":    cargoResultStderr,
		"exit_code": cargoResultExitCode,
	}))

	L.SetGlobal("cargo", L.NewFunction(cargoRun(h)))
}

func cargoRun(h *Host) lua.LGFunction {
	return func(L *lua.LState) int {
		argString := L.CheckString(1)

		args, err := shellwords.Parse(argString)
		if err != nil {
			L.RaiseError("failed to parse cargo arguments: %s", err)
			return 0
		}

		result := cargo.Run(L.Context(), h.Repo.Dir, args)
		L.Push(newCargoResultUserData(L, result))
		return 1
	}
}

func cargoResultIsOK(L *lua.LState) int {
	r := checkCargoResult(L)
	L.Push(lua.LBool(r.IsOK()))
	return 1
}

func cargoResultStdout(L *lua.LState) int {
	r := checkCargoResult(L)
	L.Push(lua.LString(r.Stdout))
	return 1
}

func cargoResultStderr(L *lua.LState) int {
	r := checkCargoResult(L)
	L.Push(lua.LString(r.Stderr))
	return 1
}

func cargoResultExitCode(L *lua.LState) int {
	r := checkCargoResult(L)
	L.Push(lua.LNumber(r.ExitCode))
	return 1
}

func checkCargoResult(L *lua.LState) *cargo.Result {
	ud, ok := L.CheckUserData(1).Value.(*cargo.Result)
	if !ok {
		L.ArgError(1, "cargo result expected")
		return nil
	}
	return ud
}

func newCargoResultUserData(L *lua.LState, r cargo.Result) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = &r
	L.SetMetatable(ud, L.GetTypeMetatable(cargoResultTypeName))
	return ud
}
