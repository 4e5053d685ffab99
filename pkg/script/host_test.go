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

package script_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
	upstream "github.com/abcxyz/pkg/githubauth"

	"github.com/abcxyz/benchbot/pkg/githubauth"
	"github.com/abcxyz/benchbot/pkg/job"
	"github.com/abcxyz/benchbot/pkg/localrepo"
	"github.com/abcxyz/benchbot/pkg/script"
)

func testPrivateKeyPEM(t *testing.T) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate rsa key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

// fakeGitHubAppServer serves the minimal installation-token-minting
// endpoints a [*githubauth.Broker] needs, plus a configurable issue-comment
// endpoint so tests can assert on posted comment bodies.
func fakeGitHubAppServer(t *testing.T, onComment func(body string)) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.Handle("GET /app/installations/42", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"access_tokens_url": "http://%s/app/installations/42/access_tokens"}`, r.Host)
	}))
	mux.Handle("POST /app/installations/42/access_tokens", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"token": "fake-installation-token"}`)
	}))
	mux.Handle("POST /repos/octo-org/widgets/issues/17/comments", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if onComment != nil {
			body, _ := io.ReadAll(r.Body)
			onComment(string(body))
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 1}`)
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestHost(t *testing.T, fakeGitHubURL string) (*script.Host, string) {
	t.Helper()

	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}
	repo, err := localrepo.Open(dir)
	if err != nil {
		t.Fatalf("localrepo.Open() error = %v", err)
	}

	broker, err := githubauth.NewBroker("app-id", testPrivateKeyPEM(t), upstream.WithBaseURL(fakeGitHubURL))
	if err != nil {
		t.Fatalf("NewBroker() error = %v", err)
	}
	broker = broker.WithRESTBaseURL(fakeGitHubURL + "/")

	h := &script.Host{
		Broker:         broker,
		InstallationID: 42,
		Job: job.Job{
			Repository: job.Repository{
				Name:  "widgets",
				Owner: job.User{Login: "octo-org"},
			},
			Issue: job.Issue{Number: 17},
		},
		Repo:       repo,
		ClonesRoot: t.TempDir(),
	}
	return h, dir
}

func writeScript(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return name
}

func TestRunWritesAndReadsRepoFiles(t *testing.T) {
	t.Parallel()

	srv := fakeGitHubAppServer(t, nil)
	h, dir := newTestHost(t, srv.URL)

	scriptPath := writeScript(t, dir, "bench.lua", `
repo:write("output.txt", "hello from lua")
local got = repo:read("output.txt")
assert(got == "hello from lua", "round trip mismatch: "..got)
`)

	if err := h.Run(context.Background(), scriptPath, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "output.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "hello from lua" {
		t.Errorf("file contents = %q", got)
	}
}

func TestRunPostsIssueComment(t *testing.T) {
	t.Parallel()

	var posted string
	srv := fakeGitHubAppServer(t, func(body string) { posted = body })
	h, dir := newTestHost(t, srv.URL)

	scriptPath := writeScript(t, dir, "comment.lua", `issue:comment("benchmark finished")`)

	if err := h.Run(context.Background(), scriptPath, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(posted, "benchmark finished") {
		t.Errorf("posted comment = %q, want to contain %q", posted, "benchmark finished")
	}
}

func TestRunRejectsParentDirWrite(t *testing.T) {
	t.Parallel()

	srv := fakeGitHubAppServer(t, nil)
	h, dir := newTestHost(t, srv.URL)

	scriptPath := writeScript(t, dir, "escape.lua", `repo:write("../escape.txt", "x")`)

	err := h.Run(context.Background(), scriptPath, nil)
	if err == nil {
		t.Fatal("Run() error = nil, want a path-escape error")
	}
	if !strings.Contains(err.Error(), "../") {
		t.Errorf("Run() error = %v, want it to mention the rejected path", err)
	}
}

func TestRunScrubsCheckoutDirFromErrors(t *testing.T) {
	t.Parallel()

	srv := fakeGitHubAppServer(t, nil)
	h, dir := newTestHost(t, srv.URL)

	scriptPath := writeScript(t, dir, "fail.lua", `error("boom")`)

	err := h.Run(context.Background(), scriptPath, nil)
	if err == nil {
		t.Fatal("Run() error = nil, want a lua runtime error")
	}
	if strings.Contains(err.Error(), dir) {
		t.Errorf("Run() error = %v, leaked checkout directory %q", err, dir)
	}
}

func TestRunExposesArgsAndEnv(t *testing.T) {
	srv := fakeGitHubAppServer(t, nil)
	h, dir := newTestHost(t, srv.URL)

	t.Setenv("BENCHBOT_TEST_VAR", "present")

	scriptPath := writeScript(t, dir, "args.lua", `
assert(args[1] == "compare", "args[1] = "..tostring(args[1]))
assert(env.get("BENCHBOT_TEST_VAR") == "present")
assert(env.get("BENCHBOT_TEST_VAR_UNSET") == "")
`)

	if err := h.Run(context.Background(), scriptPath, []string{"compare"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
