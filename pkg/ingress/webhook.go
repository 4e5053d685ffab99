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
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v61/github"
	"github.com/google/uuid"

	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/benchbot/pkg/job"
)

const (
	successMessage      = "Ok"
	errInvalidSignature = "Failed to validate webhook signature."
)

// handleWebhook validates a GitHub delivery and, if its payload dispatches
// a bot command, enqueues the resulting job.
func (s *Server) handleWebhook() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		payload, err := github.ValidatePayload(r, s.webhookSecret)
		if err != nil {
			logger.WarnContext(ctx, "failed to validate webhook payload", "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, errInvalidSignature)
			return
		}

		eventType := github.WebHookType(r)
		if eventType != "issue_comment" {
			logger.DebugContext(ctx, "ignoring unhandled event type", "event_type", eventType)
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, successMessage)
			return
		}

		rawEvent, err := github.ParseWebHook(eventType, payload)
		if err != nil {
			logger.WarnContext(ctx, "failed to parse webhook payload", "error", err)
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, successMessage)
			return
		}

		event, ok := rawEvent.(*github.IssueCommentEvent)
		if !ok {
			logger.WarnContext(ctx, "unexpected event type for issue_comment delivery", "type", fmt.Sprintf("%T", rawEvent))
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, successMessage)
			return
		}

		if j, ok := s.jobFromEvent(ctx, event); ok {
			key := dedupeKey(j.Repository.Name, tokenizeCommand(event.GetComment().GetBody()))
			s.queue.Add(key, j)
			logger.InfoContext(ctx, "enqueued job", "key", key, "command", j.Command)
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, successMessage)
	})
}

// jobFromEvent turns an issue_comment event into a [job.Job], returning
// false if the comment does not dispatch a command or the payload is
// otherwise unusable.
func (s *Server) jobFromEvent(ctx context.Context, event *github.IssueCommentEvent) (job.Job, bool) {
	logger := logging.FromContext(ctx)

	body := event.GetComment().GetBody()
	if !strings.HasPrefix(body, s.commandPrefix) {
		return job.Job{}, false
	}

	repo, err := job.RepositoryFromPayload(event.GetRepo())
	if err != nil {
		logger.WarnContext(ctx, "dropping comment with unusable repository payload", "error", err)
		return job.Job{}, false
	}

	tokens := tokenizeCommand(body)

	command, err := prepareCommand(tokens)
	if err != nil {
		logger.WarnContext(ctx, "dropping comment, not enough command tokens", "error", err)
		return job.Job{}, false
	}

	j := job.Job{
		Command:    command,
		Repository: repo,
		Issue:      job.Issue{Number: event.GetIssue().GetNumber()},
		TriggeringUser: job.User{
			Login: event.GetComment().GetUser().GetLogin(),
		},
		InstallationID: event.GetInstallation().GetID(),
	}

	return j, true
}

// dedupeKey builds the queue key: repository name, the comment's original
// command tokens joined back into a single string, and a random suffix so
// repeated invocations of the same command never collide.
func dedupeKey(repoName string, tokens []string) string {
	return fmt.Sprintf("%s_%s_%s", repoName, strings.Join(tokens, " "), uuid.New().String())
}
