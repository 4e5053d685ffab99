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

package worker_test

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
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	upstream "github.com/abcxyz/pkg/githubauth"

	"github.com/abcxyz/benchbot/pkg/checkout"
	"github.com/abcxyz/benchbot/pkg/githubauth"
	"github.com/abcxyz/benchbot/pkg/job"
	"github.com/abcxyz/benchbot/pkg/queue"
	"github.com/abcxyz/benchbot/pkg/worker"
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

func newSourceRepo(t *testing.T, issue int, scriptBody string) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}

	if err := os.MkdirAll(filepath.Join(dir, ".github", "benchbot"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".github", "benchbot", "bench.lua"), []byte(scriptBody), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree() error = %v", err)
	}
	if _, err := wt.Add("."); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com"},
	})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	pullRef := plumbing.NewReferenceFromStrings(fmt.Sprintf("refs/pull/%d/head", issue), hash.String())
	if err := repo.Storer.SetReference(pullRef); err != nil {
		t.Fatalf("SetReference() error = %v", err)
	}

	return dir
}

func fakeGitHubAppServer(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()

	var comments sync.Map

	mux := http.NewServeMux()
	mux.Handle("GET /app/installations/42", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"access_tokens_url": "http://%s/app/installations/42/access_tokens"}`, r.Host)
	}))
	mux.Handle("POST /app/installations/42/access_tokens", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"token": "fake-installation-token"}`)
	}))
	mux.Handle("POST /repos/octo-org/widgets/issues/17/comments", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		comments.Store(time.Now().UnixNano(), string(body))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 1}`)
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &comments
}

func testJob(sourceDir string) job.Job {
	return job.Job{
		Command: []string{".github/benchbot/bench.lua"},
		Repository: job.Repository{
			ID:       1,
			Name:     "widgets",
			Owner:    job.User{Login: "octo-org"},
			CloneURL: sourceDir,
		},
		Issue:          job.Issue{Number: 17},
		TriggeringUser: job.User{Login: "octo-user"},
		InstallationID: 42,
	}
}

func newTestWorker(t *testing.T, fakeGitHubURL string) *worker.Worker {
	t.Helper()

	broker, err := githubauth.NewBroker("app-id", testPrivateKeyPEM(t), upstream.WithBaseURL(fakeGitHubURL))
	if err != nil {
		t.Fatalf("NewBroker() error = %v", err)
	}
	broker = broker.WithRESTBaseURL(fakeGitHubURL + "/")

	return &worker.Worker{
		Queue:            queue.New[job.Job](),
		Checkout:         checkout.NewManager(t.TempDir()),
		Broker:           broker,
		ScriptClonesRoot: t.TempDir(),
	}
}

func runUntilIdle(t *testing.T, w *worker.Worker) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	// Give the single queued job a chance to run, then cancel so Run
	// returns instead of blocking forever on the next dequeue.
	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done
}

func TestWorkerRunsScriptSuccessfully(t *testing.T) {
	t.Parallel()

	source := newSourceRepo(t, 17, `repo:write("output.txt", "done")`)
	srv, comments := fakeGitHubAppServer(t)
	w := newTestWorker(t, srv.URL)

	w.Queue.Add("job-1", testJob(source))
	runUntilIdle(t, w)

	found := false
	comments.Range(func(_, _ any) bool { found = true; return false })
	if found {
		t.Error("expected no failure comment for a successful job")
	}
}

func TestWorkerReportsScriptFailureAsComment(t *testing.T) {
	t.Parallel()

	source := newSourceRepo(t, 17, `error("deliberate failure")`)
	srv, comments := fakeGitHubAppServer(t)
	w := newTestWorker(t, srv.URL)

	w.Queue.Add("job-1", testJob(source))
	runUntilIdle(t, w)

	var body string
	comments.Range(func(_, v any) bool { body = v.(string); return false })
	if !strings.Contains(body, "Error running job") {
		t.Errorf("comment body = %q, want it to contain %q", body, "Error running job")
	}
	if !strings.Contains(body, "deliberate failure") {
		t.Errorf("comment body = %q, want it to contain the script error", body)
	}
}
