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

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/serving"

	"github.com/abcxyz/benchbot/pkg/checkout"
	"github.com/abcxyz/benchbot/pkg/githubauth"
	"github.com/abcxyz/benchbot/pkg/ingress"
	"github.com/abcxyz/benchbot/pkg/job"
	"github.com/abcxyz/benchbot/pkg/queue"
	"github.com/abcxyz/benchbot/pkg/version"
	"github.com/abcxyz/benchbot/pkg/worker"
)

var _ cli.Command = (*ServerCommand)(nil)

// serverConfig is the full configuration of the webhook-driven server: the
// ingress front door plus the GitHub App credentials and working-tree
// options the worker loop needs.
type serverConfig struct {
	Ingress ingress.Config
	GitHub  githubauth.Config

	// ReposRoot is where the checkout manager keeps one working tree per
	// (repository, issue, user) tuple.
	ReposRoot string

	// ScriptClonesRoot is where a script's Git.clone() calls check
	// additional repositories out, separate from ReposRoot.
	ScriptClonesRoot string

	// CommitAuthorName and CommitAuthorEmail override the default commit
	// identity scripts commit as, when non-empty.
	CommitAuthorName  string
	CommitAuthorEmail string
}

func (cfg *serverConfig) Validate() error {
	var merr error
	merr = errors.Join(merr, cfg.Ingress.Validate())
	merr = errors.Join(merr, cfg.GitHub.Validate())
	if cfg.ReposRoot == "" {
		merr = errors.Join(merr, fmt.Errorf("REPOS_ROOT is required"))
	}
	if cfg.ScriptClonesRoot == "" {
		merr = errors.Join(merr, fmt.Errorf("SCRIPT_CLONES_ROOT is required"))
	}
	return merr
}

func (cfg *serverConfig) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	cfg.Ingress.ToFlags(set)
	cfg.GitHub.ToFlags(set)

	f := set.NewSection("WORKER OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "repos-root",
		Target:  &cfg.ReposRoot,
		EnvVar:  "REPOS_ROOT",
		Default: "./repos",
		Usage:   `Directory the checkout manager keeps job working trees under.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "script-clones-root",
		Target:  &cfg.ScriptClonesRoot,
		EnvVar:  "SCRIPT_CLONES_ROOT",
		Default: "/tmp/benchbot/clones",
		Usage:   `Directory Git.clone() calls from a script check repositories out under.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "commit-author-name",
		Target: &cfg.CommitAuthorName,
		EnvVar: "COMMIT_AUTHOR_NAME",
		Usage:  `Overrides the git author name scripts commit as.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "commit-author-email",
		Target: &cfg.CommitAuthorEmail,
		EnvVar: "COMMIT_AUTHOR_EMAIL",
		Usage:  `Overrides the git author email scripts commit as.`,
	})

	return set
}

// ServerCommand runs the webhook server and the worker loop together: the
// server enqueues dispatched commands, the worker drains them.
type ServerCommand struct {
	cli.BaseCommand

	cfg *serverConfig

	testFlagSetOpts []cli.Option
}

func (c *ServerCommand) Desc() string {
	return `Start the benchbot webhook server and worker`
}

func (c *ServerCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]

  Start the benchbot webhook server and its worker loop. The server accepts
  GitHub "issue_comment" deliveries and enqueues dispatched commands; the
  worker checks out the triggering repository, runs the dispatched script,
  and reports failures as issue comments.
`
}

func (c *ServerCommand) Flags() *cli.FlagSet {
	c.cfg = &serverConfig{}
	set := cli.NewFlagSet(c.testFlagSetOpts...)
	return c.cfg.ToFlags(set)
}

func (c *ServerCommand) Run(ctx context.Context, args []string) error {
	server, mux, w, err := c.RunUnstarted(ctx, args)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := w.Run(ctx); err != nil {
			errCh <- fmt.Errorf("worker loop failed: %w", err)
		}
	}()

	go func() {
		if err := server.StartHTTPHandler(ctx, mux); err != nil {
			errCh <- fmt.Errorf("error starting http handler: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// RunUnstarted parses flags and wires the server, mux, and worker but does
// not start either loop, so tests can exercise them independently.
func (c *ServerCommand) RunUnstarted(ctx context.Context, args []string) (*serving.Server, http.Handler, *worker.Worker, error) {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	args = f.Args()
	if len(args) > 0 {
		return nil, nil, nil, fmt.Errorf("unexpected arguments: %q", args)
	}

	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "server starting",
		"name", version.Name,
		"commit", version.Commit,
		"version", version.Version)

	if err := c.cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.DebugContext(ctx, "loaded configuration", "config", c.cfg)

	broker, err := c.cfg.GitHub.NewBroker(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build github app broker: %w", err)
	}

	q := queue.New[job.Job]()
	ingressServer := ingress.NewServer(&c.cfg.Ingress, q)

	w := &worker.Worker{
		Queue:             q,
		Checkout:          checkout.NewManager(c.cfg.ReposRoot),
		Broker:            broker,
		ScriptClonesRoot:  c.cfg.ScriptClonesRoot,
		CommitAuthorName:  c.cfg.CommitAuthorName,
		CommitAuthorEmail: c.cfg.CommitAuthorEmail,
	}

	addr := net.JoinHostPort(c.cfg.Ingress.Address, c.cfg.Ingress.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	server, err := serving.NewFromListener(lis)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create serving infrastructure: %w", err)
	}

	return server, ingressServer.Routes(ctx), w, nil
}
