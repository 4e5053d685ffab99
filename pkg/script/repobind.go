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

const (
	repoTypeName     = "repo"
	dirEntryTypeName = "dir_entry"
)

// registerRepoType registers the "repo" userdata type: the working tree a
// job was checked out into, or one returned by Git.clone(). It also
// registers the "dir_entry" userdata type ls() returns entries as.
func registerRepoType(L *lua.LState, h *Host) {
	mt := L.NewTypeMetatable(repoTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"read":        repoRead,
		"write":       repoWrite,
		"ls":          repoLs,
		"add":         repoAdd,
		"ls_modified": repoLsModified,
		"status":      repoStatus,
		"commit":      repoCommit,
		"branch":      repoBranch,
		"push":        repoPush(h),
		"create_pr":   repoCreatePR(h),
	}))

	registerDirEntryType(L)
}

func newRepoUserData(L *lua.LState, r *localrepo.Repo) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = r
	L.SetMetatable(ud, L.GetTypeMetatable(repoTypeName))
	return ud
}

func checkRepo(L *lua.LState) *localrepo.Repo {
	ud, ok := L.CheckUserData(1).Value.(*localrepo.Repo)
	if !ok {
		L.ArgError(1, "repo expected")
		return nil
	}
	return ud
}

// repoRead implements repo:read(path).
func repoRead(L *lua.LState) int {
	r := checkRepo(L)
	path := L.CheckString(2)

	contents, err := r.ReadFile(path)
	if err != nil {
		L.RaiseError("failed to read %s: %s", path, err)
		return 0
	}
	L.Push(lua.LString(contents))
	return 1
}

// repoWrite implements repo:write(path, contents).
func repoWrite(L *lua.LState) int {
	r := checkRepo(L)
	path := L.CheckString(2)
	contents := L.CheckString(3)

	if err := r.WriteFile(path, []byte(contents)); err != nil {
		L.RaiseError("failed to write %s: %s", path, err)
		return 0
	}
	return 0
}

// repoLs implements repo:ls([dir]), listing the immediate contents of dir
// (the repository root if omitted) as "dir_entry" values.
func repoLs(L *lua.LState) int {
	r := checkRepo(L)

	dir := ""
	if L.GetTop() >= 2 {
		dir = L.CheckString(2)
	}

	entries, err := r.ListFiles(dir)
	if err != nil {
		L.RaiseError("failed to list files: %s", err)
		return 0
	}

	out := L.NewTable()
	for _, e := range entries {
		out.Append(newDirEntryUserData(L, e))
	}
	L.Push(out)
	return 1
}

// repoAdd implements repo:add(path).
func repoAdd(L *lua.LState) int {
	r := checkRepo(L)
	path := L.CheckString(2)

	if err := r.Add(path); err != nil {
		L.RaiseError("failed to stage %s: %s", path, err)
		return 0
	}
	return 0
}

// repoLsModified implements repo:ls_modified().
func repoLsModified(L *lua.LState) int {
	r := checkRepo(L)

	paths, err := r.ListModified()
	if err != nil {
		L.RaiseError("failed to list modified files: %s", err)
		return 0
	}

	out := L.NewTable()
	for _, p := range paths {
		out.Append(lua.LString(p))
	}
	L.Push(out)
	return 1
}

// repoStatus implements repo:status(), returning a "status" userdata.
func repoStatus(L *lua.LState) int {
	r := checkRepo(L)

	status, err := r.Status()
	if err != nil {
		L.RaiseError("failed to compute status: %s", err)
		return 0
	}
	L.Push(newStatusUserData(L, status))
	return 1
}

// repoCommit implements repo:commit(message), returning the new commit's
// hash as a string.
func repoCommit(L *lua.LState) int {
	r := checkRepo(L)
	message := L.CheckString(2)

	hash, err := r.Commit(message)
	if err != nil {
		L.RaiseError("failed to commit: %s", err)
		return 0
	}
	L.Push(lua.LString(hash.String()))
	return 1
}

// repoBranch implements repo:branch(name), force-creating a local branch at
// HEAD.
func repoBranch(L *lua.LState) int {
	r := checkRepo(L)
	name := L.CheckString(2)

	head, err := r.Head()
	if err != nil {
		L.RaiseError("failed to resolve HEAD: %s", err)
		return 0
	}
	if err := r.Branch(name, head.Hash); err != nil {
		L.RaiseError("failed to create branch %s: %s", name, err)
		return 0
	}
	return 0
}

// repoPush implements repo:push(localref, remoteref), minting a fresh
// installation token for the push.
func repoPush(h *Host) lua.LGFunction {
	return func(L *lua.LState) int {
		r := checkRepo(L)
		localRef := L.CheckString(2)
		remoteRef := L.CheckString(3)

		token, err := h.Broker.InstallationToken(L.Context(), h.InstallationID)
		if err != nil {
			L.RaiseError("failed to authenticate to GitHub: %s", err)
			return 0
		}

		if err := r.Push(L.Context(), token, localRef, remoteRef); err != nil {
			L.RaiseError("failed to push %s to %s: %s", localRef, remoteRef, err)
			return 0
		}
		return 0
	}
}

// repoCreatePR implements repo:create_pr(title, body, head, base), opening
// a pull request against the job's own repository.
func repoCreatePR(h *Host) lua.LGFunction {
	return func(L *lua.LState) int {
		checkRepo(L)
		title := L.CheckString(2)
		body := L.CheckString(3)
		head := L.CheckString(4)
		base := L.CheckString(5)

		client, err := h.Broker.RESTClient(L.Context(), h.InstallationID)
		if err != nil {
			L.RaiseError("failed to authenticate to GitHub: %s", err)
			return 0
		}

		pr, err := localrepo.CreatePR(L.Context(), client,
			h.Job.Repository.Owner.Login, h.Job.Repository.Name, title, body, head, base)
		if err != nil {
			L.RaiseError("failed to create pull request: %s", err)
			return 0
		}
		L.Push(lua.LNumber(pr.GetNumber()))
		return 1
	}
}

// registerDirEntryType registers the "dir_entry" userdata type returned by
// repo:ls(): is_file, is_dir, is_symlink, plus the repo-relative path.
func registerDirEntryType(L *lua.LState) {
	mt := L.NewTypeMetatable(dirEntryTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"path":       dirEntryField(func(e localrepo.Entry) lua.LValue { return lua.LString(e.Path) }),
		"is_file":    dirEntryField(func(e localrepo.Entry) lua.LValue { return lua.LBool(e.IsFile) }),
		"is_dir":     dirEntryField(func(e localrepo.Entry) lua.LValue { return lua.LBool(e.IsDir) }),
		"is_symlink": dirEntryField(func(e localrepo.Entry) lua.LValue { return lua.LBool(e.IsSymlink) }),
	}))
}

func newDirEntryUserData(L *lua.LState, e localrepo.Entry) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = e
	L.SetMetatable(ud, L.GetTypeMetatable(dirEntryTypeName))
	return ud
}

func dirEntryField(get func(localrepo.Entry) lua.LValue) lua.LGFunction {
	return func(L *lua.LState) int {
		e, ok := L.CheckUserData(1).Value.(localrepo.Entry)
		if !ok {
			L.ArgError(1, "dir_entry expected")
			return 0
		}
		L.Push(get(e))
		return 1
	}
}
