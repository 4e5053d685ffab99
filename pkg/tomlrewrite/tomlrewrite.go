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

// Package tomlrewrite patches Cargo manifest dependency tables so scripts
// can point a fork's dependents at the fork's git ref instead of a sibling
// path that only exists in the original checkout.
package tomlrewrite

import (
	"fmt"

	toml "github.com/pelletier/go-toml"
)

// dependencyTables are the manifest tables ReplacePathDependenciesWithGit
// rewrites.
var dependencyTables = []string{"dependencies", "build-dependencies", "dev-dependencies"}

// ReplacePathDependenciesWithGit rewrites every `path = "..."` dependency in
// manifest's dependency tables into a `git = url, branch = branch`
// dependency, leaving version-only and already-git dependencies untouched.
func ReplacePathDependenciesWithGit(manifest []byte, url, branch string) ([]byte, error) {
	tree, err := toml.LoadBytes(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	for _, table := range dependencyTables {
		deps, ok := tree.Get(table).(*toml.Tree)
		if !ok {
			continue
		}

		for _, name := range deps.Keys() {
			dep, ok := deps.Get(name).(*toml.Tree)
			if !ok {
				// A bare version string dependency (`serde = "1"`) has no
				// path to replace.
				continue
			}
			if !dep.Has("path") {
				continue
			}
			dep.Delete("path")
			dep.Set("git", url)
			dep.Set("branch", branch)
		}
	}

	return []byte(tree.String()), nil
}
