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

package githubauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/abcxyz/pkg/cli"

	upstream "github.com/abcxyz/pkg/githubauth"

	"github.com/abcxyz/benchbot/pkg/secrets"
)

// Config is the GitHub App configuration every benchbot binary needs to
// mint installation tokens.
type Config struct {
	// GitHubAppID is the numeric ID of the provisioned GitHub App.
	GitHubAppID string

	// GitHubPrivateKey is the App's PEM encoded RSA private key.
	GitHubPrivateKey string

	// GitHubPrivateKeySecretID, if set, names a Secret Manager resource
	// ("projects/*/secrets/*/versions/*") to fetch the private key from
	// instead of GitHubPrivateKey. Mutually exclusive with it.
	GitHubPrivateKeySecretID string

	// GitHubEnterpriseServerURL is the GitHub Enterprise Server instance
	// URL, in the format "https://[hostname]". Empty means public GitHub.
	GitHubEnterpriseServerURL string
}

// Validate does sanity checking on the configuration.
func (cfg *Config) Validate() error {
	var merr error

	if cfg.GitHubAppID == "" {
		merr = errors.Join(merr, fmt.Errorf("GITHUB_APP_ID is required"))
	}
	if cfg.GitHubPrivateKey == "" && cfg.GitHubPrivateKeySecretID == "" {
		merr = errors.Join(merr, fmt.Errorf("GITHUB_PRIVATE_KEY or GITHUB_PRIVATE_KEY_SECRET_ID is required"))
	}
	if cfg.GitHubPrivateKey != "" && cfg.GitHubPrivateKeySecretID != "" {
		merr = errors.Join(merr, fmt.Errorf("only one of GITHUB_PRIVATE_KEY, GITHUB_PRIVATE_KEY_SECRET_ID may be set"))
	}

	return merr
}

// ToFlags binds the config to the given [cli.FlagSet] and returns it.
func (cfg *Config) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("GITHUB APP OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:   "app-id",
		Target: &cfg.GitHubAppID,
		EnvVar: "GITHUB_APP_ID",
		Usage:  `The provisioned GitHub App ID.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "app-key",
		Target: &cfg.GitHubPrivateKey,
		EnvVar: "GITHUB_PRIVATE_KEY",
		Usage:  `The GitHub App's PEM encoded private key.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "app-key-secret-id",
		Target: &cfg.GitHubPrivateKeySecretID,
		EnvVar: "GITHUB_PRIVATE_KEY_SECRET_ID",
		Usage:  `A Secret Manager resource name to fetch the App's private key from, instead of --app-key.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "enterprise-server-url",
		Target: &cfg.GitHubEnterpriseServerURL,
		EnvVar: "GITHUB_ENTERPRISE_SERVER_URL",
		Usage:  `The GitHub Enterprise Server instance URL, format "https://[hostname]".`,
	})

	return set
}

// NewBroker resolves the configured private key (fetching it from Secret
// Manager first, if configured) and builds a [Broker] from it.
func (cfg *Config) NewBroker(ctx context.Context) (*Broker, error) {
	privateKey := cfg.GitHubPrivateKey
	if cfg.GitHubPrivateKeySecretID != "" {
		key, err := secrets.AccessSecretFromSecretManager(ctx, cfg.GitHubPrivateKeySecretID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch github app private key from secret manager: %w", err)
		}
		privateKey = key
	}

	var opts []upstream.Option
	if cfg.GitHubEnterpriseServerURL != "" {
		opts = append(opts, upstream.WithBaseURL(cfg.GitHubEnterpriseServerURL+"/api/v3"))
	}

	broker, err := NewBroker(cfg.GitHubAppID, privateKey, opts...)
	if err != nil {
		return nil, err
	}

	if cfg.GitHubEnterpriseServerURL != "" {
		broker = broker.WithRESTBaseURL(cfg.GitHubEnterpriseServerURL + "/api/v3/")
	}
	return broker, nil
}
