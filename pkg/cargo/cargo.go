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

// Package cargo runs the "cargo" binary on behalf of scripts, with a
// scrubbed environment so a script can never read ambient secrets through
// it.
package cargo

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// Result is a completed cargo invocation. A spawn failure (binary missing,
// permissions, and so on) is reported as ExitCode -1 with the failure
// message in Stderr, never as a Go error — scripts inspect IsOK() rather
// than handling two different failure shapes.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// IsOK reports whether cargo exited zero.
func (r Result) IsOK() bool {
	return r.ExitCode == 0
}

// Run runs `cargo <args...>` in dir with a cleared environment and no
// stdin, capturing stdout and stderr.
func Run(ctx context.Context, dir string, args []string) Result {
	cmd := exec.CommandContext(ctx, "cargo", args...)
	cmd.Dir = dir
	cmd.Env = []string{}
	cmd.Stdin = nil

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}
		}
		return Result{
			ExitCode: -1,
			Stdout:   "",
			Stderr:   "error executing cargo: " + err.Error(),
		}
	}

	return Result{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String()}
}
