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

package ingress

import (
	"path/filepath"
	"strings"

	"github.com/abcxyz/benchbot/pkg/job"
	shellwords "github.com/mattn/go-shellwords"
)

// tokenizeCommand splits the first line of a comment body into shell-style
// words, falling back to whitespace splitting if the line contains
// unbalanced quoting go-shellwords can't parse.
func tokenizeCommand(body string) []string {
	line := body
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		line = body[:i]
	}

	if tokens, err := shellwords.Parse(line); err == nil {
		return tokens
	}

	return strings.Fields(line)
}

// prepareCommand turns the raw comment tokens into a Job's Command: element
// 0 becomes the resolved script path under .github/, and the remaining
// tokens are passed through unchanged as script arguments. The first token
// (its leading "/" stripped, if present) names the script namespace
// directory, the second names the subcommand file.
func prepareCommand(tokens []string) ([]string, error) {
	if len(tokens) < 2 {
		return nil, job.ErrShortCommand
	}

	dir := strings.TrimPrefix(tokens[0], "/")
	file := tokens[1] + ".rhai"
	scriptPath := filepath.Join(".github", dir, file)

	command := make([]string, 0, len(tokens)-1)
	command = append(command, scriptPath)
	command = append(command, tokens[2:]...)

	return command, nil
}
