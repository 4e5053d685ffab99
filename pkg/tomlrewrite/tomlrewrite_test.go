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

package tomlrewrite

import (
	"strings"
	"testing"

	toml "github.com/pelletier/go-toml"
)

func TestReplacePathDependenciesWithGit(t *testing.T) {
	t.Parallel()

	manifest := `
[package]
name = "widgets"
version = "0.1.0"

[dependencies]
serde = "1"
sibling = { path = "../sibling" }
log = { version = "0.4", path = "../log" }

[dependencies.inline-style]
path = "../inline-style"

[build-dependencies]
codegen = { path = "../codegen" }

[dev-dependencies]
proptest = "1"
fixtures = { path = "../fixtures" }
`

	got, err := ReplacePathDependenciesWithGit([]byte(manifest), "https://github.com/octo-org/widgets-fork", "my-branch")
	if err != nil {
		t.Fatalf("ReplacePathDependenciesWithGit() error = %v", err)
	}

	tree, err := toml.LoadBytes(got)
	if err != nil {
		t.Fatalf("failed to parse rewritten manifest: %v", err)
	}

	// Bare version string dependency is left untouched.
	if v := tree.Get("dependencies.serde"); v != "1" {
		t.Errorf("dependencies.serde = %v, want %q", v, "1")
	}

	// Path-only table dependency becomes git+branch.
	sibling, ok := tree.Get("dependencies.sibling").(*toml.Tree)
	if !ok {
		t.Fatalf("dependencies.sibling is not a table: %v", tree.Get("dependencies.sibling"))
	}
	if sibling.Has("path") {
		t.Errorf("dependencies.sibling still has path")
	}
	if got := sibling.Get("git"); got != "https://github.com/octo-org/widgets-fork" {
		t.Errorf("dependencies.sibling.git = %v, want the fork url", got)
	}
	if got := sibling.Get("branch"); got != "my-branch" {
		t.Errorf("dependencies.sibling.branch = %v, want %q", got, "my-branch")
	}

	// version+path table dependency keeps version, drops path, gains git+branch.
	logDep, ok := tree.Get("dependencies.log").(*toml.Tree)
	if !ok {
		t.Fatalf("dependencies.log is not a table: %v", tree.Get("dependencies.log"))
	}
	if logDep.Has("path") {
		t.Errorf("dependencies.log still has path")
	}
	if got := logDep.Get("version"); got != "0.4" {
		t.Errorf("dependencies.log.version = %v, want %q (version preserved)", got, "0.4")
	}
	if got := logDep.Get("git"); got != "https://github.com/octo-org/widgets-fork" {
		t.Errorf("dependencies.log.git = %v, want the fork url", got)
	}

	// Dependency declared with its own [dependencies.<name>] table header is
	// rewritten the same way.
	inline, ok := tree.Get("dependencies.inline-style").(*toml.Tree)
	if !ok {
		t.Fatalf("dependencies.inline-style is not a table: %v", tree.Get("dependencies.inline-style"))
	}
	if inline.Has("path") {
		t.Errorf("dependencies.inline-style still has path")
	}
	if got := inline.Get("branch"); got != "my-branch" {
		t.Errorf("dependencies.inline-style.branch = %v, want %q", got, "my-branch")
	}

	// build-dependencies and dev-dependencies are processed identically to dependencies.
	codegen, ok := tree.Get("build-dependencies.codegen").(*toml.Tree)
	if !ok {
		t.Fatalf("build-dependencies.codegen is not a table: %v", tree.Get("build-dependencies.codegen"))
	}
	if codegen.Has("path") {
		t.Errorf("build-dependencies.codegen still has path")
	}
	if got := codegen.Get("git"); got != "https://github.com/octo-org/widgets-fork" {
		t.Errorf("build-dependencies.codegen.git = %v, want the fork url", got)
	}

	if v := tree.Get("dev-dependencies.proptest"); v != "1" {
		t.Errorf("dev-dependencies.proptest = %v, want %q", v, "1")
	}
	fixtures, ok := tree.Get("dev-dependencies.fixtures").(*toml.Tree)
	if !ok {
		t.Fatalf("dev-dependencies.fixtures is not a table: %v", tree.Get("dev-dependencies.fixtures"))
	}
	if fixtures.Has("path") {
		t.Errorf("dev-dependencies.fixtures still has path")
	}
	if got := fixtures.Get("branch"); got != "my-branch" {
		t.Errorf("dev-dependencies.fixtures.branch = %v, want %q", got, "my-branch")
	}
}

func TestReplacePathDependenciesWithGit_InvalidManifest(t *testing.T) {
	t.Parallel()

	_, err := ReplacePathDependenciesWithGit([]byte("not valid [ toml"), "url", "branch")
	if err == nil {
		t.Fatal("expected an error for invalid toml, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse manifest") {
		t.Errorf("error = %v, want it to mention manifest parsing", err)
	}
}
