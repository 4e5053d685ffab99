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
	"path/filepath"
	"strconv"

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/benchbot/pkg/githubauth"
	"github.com/abcxyz/benchbot/pkg/job"
	"github.com/abcxyz/benchbot/pkg/localrepo"
	"github.com/abcxyz/benchbot/pkg/script"
	"github.com/abcxyz/benchbot/pkg/version"
)

var _ cli.Command = (*RunCommand)(nil)

// runConfig is the one-shot runner's configuration: it operates against an
// already-present local directory rather than a fresh webhook-driven
// checkout, so it needs no webhook secret and no queue.
type runConfig struct {
	GitHub githubauth.Config

	// Repo is the local directory to run the script against, already
	// checked out by the operator.
	Repo string

	// CloneDir is where the script's Git.clone() calls check additional
	// repositories out.
	CloneDir string

	// InstallationID scopes every token minted for this run. Unlike the
	// webhook server, there is no delivery payload to read it from.
	InstallationID string

	// GitHubOwner and GitHubName identify the repository the script's job is
	// bound to: where its issue:comment() calls would post, if
	// InstallationIssueNumber is set. They do not narrow the tokens minted
	// under InstallationID.
	GitHubOwner string
	GitHubName  string

	// InstallationIssueNumber, if non-zero, is the issue a script's
	// issue:comment() calls post to. Zero means the run has no triggering
	// issue, matching the original runner's gh_issue: None.
	InstallationIssueNumber int

	CommitAuthorName  string
	CommitAuthorEmail string
}

func (cfg *runConfig) Validate() error {
	var merr error
	merr = errors.Join(merr, cfg.GitHub.Validate())
	if cfg.Repo == "" {
		merr = errors.Join(merr, fmt.Errorf("REPO is required"))
	}
	if cfg.GitHubOwner == "" {
		merr = errors.Join(merr, fmt.Errorf("GITHUB_OWNER is required"))
	}
	if cfg.GitHubName == "" {
		merr = errors.Join(merr, fmt.Errorf("GITHUB_NAME is required"))
	}
	if cfg.InstallationID == "" {
		merr = errors.Join(merr, fmt.Errorf("INSTALLATION_ID is required"))
	}
	return merr
}

func (cfg *runConfig) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	cfg.GitHub.ToFlags(set)

	f := set.NewSection("RUN OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "repo",
		Target:  &cfg.Repo,
		EnvVar:  "REPO",
		Default: "./",
		Usage:   `Local directory, already checked out, to run the script against.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "clone-dir",
		Target:  &cfg.CloneDir,
		EnvVar:  "CLONE_DIR",
		Default: "/tmp",
		Usage:   `Directory Git.clone() calls from the script check repositories out under.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "github-owner",
		Target: &cfg.GitHubOwner,
		EnvVar: "GITHUB_OWNER",
		Usage:  `The owner of the repository the script's job is bound to.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "github-name",
		Target: &cfg.GitHubName,
		EnvVar: "GITHUB_NAME",
		Usage:  `The name of the repository the script's job is bound to.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "installation-id",
		Target: &cfg.InstallationID,
		EnvVar: "INSTALLATION_ID",
		Usage:  `The GitHub App installation ID to mint tokens against. Unlike the webhook server, this runner has no delivery payload to read it from, so it must be given explicitly.`,
	})

	f.IntVar(&cli.IntVar{
		Name:   "issue",
		Target: &cfg.InstallationIssueNumber,
		EnvVar: "ISSUE",
		Usage:  `An issue number for the script's issue:comment() calls to post to. Omit if the run has no triggering issue.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "commit-author-name",
		Target: &cfg.CommitAuthorName,
		EnvVar: "COMMIT_AUTHOR_NAME",
		Usage:  `Overrides the git author name the script commits as.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "commit-author-email",
		Target: &cfg.CommitAuthorEmail,
		EnvVar: "COMMIT_AUTHOR_EMAIL",
		Usage:  `Overrides the git author email the script commits as.`,
	})

	return set
}

// RunCommand runs a single script against an already-checked-out local
// repository, without a webhook delivery or a queue — useful for
// reproducing a job locally or running a script outside CI entirely.
type RunCommand struct {
	cli.BaseCommand

	cfg *runConfig

	testFlagSetOpts []cli.Option
}

func (c *RunCommand) Desc() string {
	return `Run a benchbot script against a local checkout`
}

func (c *RunCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options] -- <script> [script args...]

  Run a single benchbot script against an already-checked-out local
  directory, without a webhook delivery. Useful for reproducing a dispatched
  job locally.
`
}

func (c *RunCommand) Flags() *cli.FlagSet {
	c.cfg = &runConfig{}
	set := cli.NewFlagSet(c.testFlagSetOpts...)
	return c.cfg.ToFlags(set)
}

func (c *RunCommand) Run(ctx context.Context, args []string) error {
	logger := logging.FromContext(ctx)

	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	args = f.Args()
	if len(args) < 1 {
		return fmt.Errorf("a script path is required")
	}
	scriptPath, scriptArgs := args[0], args[1:]

	logger.DebugContext(ctx, "run starting",
		"name", version.Name,
		"commit", version.Commit,
		"version", version.Version)

	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	repoDir, err := filepath.Abs(c.cfg.Repo)
	if err != nil {
		return fmt.Errorf("failed to resolve repo path: %w", err)
	}

	installationID, err := strconv.ParseInt(c.cfg.InstallationID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid installation id %q: %w", c.cfg.InstallationID, err)
	}

	broker, err := c.cfg.GitHub.NewBroker(ctx)
	if err != nil {
		return fmt.Errorf("failed to build github app broker: %w", err)
	}

	repo, err := localrepo.Open(repoDir)
	if err != nil {
		return fmt.Errorf("failed to open local repository %s: %w", repoDir, err)
	}

	host := &script.Host{
		Broker:         broker,
		InstallationID: installationID,
		Job: job.Job{
			Repository: job.Repository{
				Name:  c.cfg.GitHubName,
				Owner: job.User{Login: c.cfg.GitHubOwner},
			},
			Issue: job.Issue{Number: c.cfg.InstallationIssueNumber},
		},
		Repo:              repo,
		ClonesRoot:        c.cfg.CloneDir,
		CommitAuthorName:  c.cfg.CommitAuthorName,
		CommitAuthorEmail: c.cfg.CommitAuthorEmail,
	}

	if err := host.Run(ctx, scriptPath, scriptArgs); err != nil {
		return fmt.Errorf("script failed: %w", err)
	}
	return nil
}
