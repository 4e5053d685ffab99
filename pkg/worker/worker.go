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

// Package worker runs the serial loop that turns dispatched jobs into
// checked-out repositories and executed scripts. It dequeues directly from
// the in-process queue shared with the ingress server, since a single
// process can pass that state across goroutines without an HTTP hop.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-github/v61/github"

	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/benchbot/pkg/checkout"
	"github.com/abcxyz/benchbot/pkg/githubauth"
	"github.com/abcxyz/benchbot/pkg/job"
	"github.com/abcxyz/benchbot/pkg/localrepo"
	"github.com/abcxyz/benchbot/pkg/queue"
	"github.com/abcxyz/benchbot/pkg/script"
)

// Worker pulls jobs off a queue, one at a time, and runs them to
// completion: checkout, script execution, and — on failure — a
// best-effort comment explaining what went wrong.
type Worker struct {
	Queue    *queue.Queue[job.Job]
	Checkout *checkout.Manager
	Broker   *githubauth.Broker

	// ScriptClonesRoot is passed through to every script.Host as the
	// directory Git.clone() checks repositories out into.
	ScriptClonesRoot string

	// CommitAuthorName and CommitAuthorEmail, if set, override the default
	// commit identity scripts commit as.
	CommitAuthorName  string
	CommitAuthorEmail string
}

// Run dequeues and executes jobs until ctx is cancelled. It never returns a
// non-nil error on a single job's failure — job failures are reported as
// GitHub comments, not propagated to the caller — only ctx cancellation
// ends the loop.
func (w *Worker) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	for {
		j, err := w.next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		logger.InfoContext(ctx, "processing job", "command", j.Command, "repository", j.Repository.Name)
		w.runJob(ctx, j)
	}
}

// next blocks until a job is available or ctx is cancelled.
func (w *Worker) next(ctx context.Context) (job.Job, error) {
	if j, ok := w.Queue.Remove(); ok {
		return j, nil
	}

	ch := w.Queue.RegisterWatcher()
	select {
	case j := <-ch:
		return j, nil
	case <-ctx.Done():
		return job.Job{}, ctx.Err()
	}
}

// runJob checks a job out, runs its script, and reports any failure as a
// comment on the triggering issue — mirroring the original reactor's
// run()/create_comment() sequence, including minting a second, fresh token
// for the failure comment so a checkout or script-side token problem can
// never prevent the comment from posting.
func (w *Worker) runJob(ctx context.Context, j job.Job) {
	logger := logging.FromContext(ctx)

	if err := w.execute(ctx, j); err != nil {
		logger.WarnContext(ctx, "error running job", "error", err)
		w.reportFailure(ctx, j, err)
	}
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	if err := j.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	token, err := w.Broker.InstallationToken(ctx, j.InstallationID)
	if err != nil {
		return fmt.Errorf("failed to authenticate to GitHub: %w", err)
	}

	checkedOut, err := w.Checkout.Checkout(ctx, j, token)
	if err != nil {
		return fmt.Errorf("failed to check out repository: %w", err)
	}

	repo, err := localrepo.Open(checkedOut.Dir)
	if err != nil {
		return fmt.Errorf("failed to open checked out repository: %w", err)
	}

	host := &script.Host{
		Broker:            w.Broker,
		InstallationID:    j.InstallationID,
		Job:               j,
		Repo:              repo,
		ClonesRoot:        w.ScriptClonesRoot,
		CommitAuthorName:  w.CommitAuthorName,
		CommitAuthorEmail: w.CommitAuthorEmail,
	}

	if err := host.Run(ctx, j.Command[0], j.Command[1:]); err != nil {
		return fmt.Errorf("script failed: %w", err)
	}
	return nil
}

// reportFailure posts a best-effort "Error running job: <detail>" comment
// on the triggering issue. A failure to authenticate or post is logged,
// never propagated — the worker loop must keep running regardless.
func (w *Worker) reportFailure(ctx context.Context, j job.Job, jobErr error) {
	logger := logging.FromContext(ctx)

	client, err := w.Broker.RESTClient(ctx, j.InstallationID)
	if err != nil {
		logger.WarnContext(ctx, "failed to authenticate to GitHub to report job failure", "error", err)
		return
	}

	_, _, err = client.Issues.CreateComment(ctx, j.Repository.Owner.Login, j.Repository.Name, j.Issue.Number,
		&github.IssueComment{Body: github.String(fmt.Sprintf("Error running job: %s", jobErr))})
	if err != nil {
		logger.WarnContext(ctx, "failed to comment on issue", "error", err)
	}
}
