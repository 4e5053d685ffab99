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

	"github.com/abcxyz/pkg/healthcheck"
	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/benchbot/pkg/job"
	"github.com/abcxyz/benchbot/pkg/queue"
	"github.com/abcxyz/benchbot/pkg/version"
)

// Server is the webhook front door. It validates inbound GitHub deliveries
// and feeds dispatched commands into a shared [queue.Queue].
type Server struct {
	webhookSecret []byte
	commandPrefix string
	queue         *queue.Queue[job.Job]
}

// NewServer creates a new [Server] backed by the given queue.
func NewServer(cfg *Config, q *queue.Queue[job.Job]) *Server {
	return &Server{
		webhookSecret: []byte(cfg.WebhookSecret),
		commandPrefix: cfg.CommandPrefix,
		queue:         q,
	}
}

// Routes builds the mux this server answers on: `POST /` for GitHub
// deliveries, `POST /queue/remove` for dequeue over HTTP, plus the standard
// health and version endpoints.
func (s *Server) Routes(ctx context.Context) http.Handler {
	logger := logging.FromContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/", s.handleWebhook())
	mux.Handle("/queue/remove", s.handleQueueRemove())
	mux.Handle("/healthz", healthcheck.HandleHTTPHealthCheck())
	mux.Handle("/version", s.handleVersion())

	root := logging.HTTPInterceptor(logger, "")(mux)

	return root
}

// handleVersion responds with version information for the server.
func (s *Server) handleVersion() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"version":%q}`, version.HumanVersion)
	})
}
