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

// Package ingress is the webhook front door: it validates a GitHub
// `issue_comment` delivery, decides whether its body dispatches a bot
// command, and enqueues the resulting [job.Job].
package ingress

import (
	"context"
	"fmt"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/abcxyz/pkg/cli"
	"github.com/sethvargo/go-envconfig"
)

// Config defines the environment variables the ingress server needs.
type Config struct {
	WebhookSecret string `env:"GITHUB_WEBHOOK_SECRET,required"`
	CommandPrefix string `env:"COMMAND_PREFIX,default=/benchbot"`
	Port          string `env:"PORT,default=3000"`
	Address       string `env:"ADDRESS,default=127.0.0.1"`
}

// Validate validates the config after load.
func (cfg *Config) Validate() error {
	if cfg.WebhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}
	if cfg.CommandPrefix == "" {
		return fmt.Errorf("COMMAND_PREFIX is required")
	}
	return nil
}

// NewConfig creates a new Config from environment variables.
func NewConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := cfgloader.Load(ctx, &cfg, cfgloader.WithLookuper(envconfig.OsLookuper())); err != nil {
		return nil, fmt.Errorf("failed to parse ingress config: %w", err)
	}
	return &cfg, nil
}

// ToFlags binds the config to the given [cli.FlagSet] and returns it.
func (cfg *Config) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("INGRESS OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:   "webhook-secret",
		Target: &cfg.WebhookSecret,
		EnvVar: "GITHUB_WEBHOOK_SECRET",
		Usage:  `The shared secret GitHub signs webhook deliveries with.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "command-prefix",
		Target:  &cfg.CommandPrefix,
		EnvVar:  "COMMAND_PREFIX",
		Default: "/benchbot",
		Usage:   `The comment prefix that dispatches a bot command.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "port",
		Target:  &cfg.Port,
		EnvVar:  "PORT",
		Default: "3000",
		Usage:   `The port the webhook server listens on.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "address",
		Target:  &cfg.Address,
		EnvVar:  "ADDRESS",
		Default: "127.0.0.1",
		Usage:   `The address the webhook server listens on.`,
	})

	return set
}
