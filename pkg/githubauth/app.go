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

// Package githubauth mints the installation access tokens every checkout,
// script run, and comment post authenticates with. It is a thin wrapper
// around [github.com/abcxyz/pkg/githubauth]'s GitHub App client: the App
// itself proves identity with a JWT signed by the App's private key, and
// each installation hands out short-lived, permission-scoped tokens on
// request. Nothing in this package keeps a token past the call that
// requested it; the worker loop mints a fresh one for every job (spec
// §4.1), including a second one after a script error, so that a comment
// explaining the failure can still be posted with a live token.
package githubauth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/go-github/v61/github"
	"golang.org/x/oauth2"

	upstream "github.com/abcxyz/pkg/githubauth"
)

// permissions are the installation token scopes benchbot requests. A
// script only ever needs to read and write the repository it was checked
// out against and comment on the issue that dispatched it; it never needs
// organization- or account-level access.
var permissions = map[string]string{
	"contents":      "write",
	"pull_requests": "write",
	"issues":        "write",
}

// Broker mints GitHub App installation tokens on demand and builds
// [*github.Client]s around them.
type Broker struct {
	app *upstream.App

	// restBaseURL, when set, points RESTClient at an enterprise server (or
	// a test server) instead of the public GitHub API.
	restBaseURL string
}

// NewBroker constructs a [Broker] from a GitHub App's numeric ID and PEM
// encoded RSA private key. Additional [upstream.Option]s (such as
// [upstream.WithBaseURL] for enterprise servers or tests) pass straight
// through to the JWT/installation-token minting side.
func NewBroker(appID, privateKeyPEM string, opts ...upstream.Option) (*Broker, error) {
	signer, err := upstream.NewPrivateKeySigner(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse github app private key: %w", err)
	}

	app, err := upstream.NewApp(appID, signer, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create github app: %w", err)
	}

	return &Broker{app: app}, nil
}

// WithRESTBaseURL returns a copy of b whose RESTClient talks to baseURL
// instead of the public GitHub API, for enterprise servers and tests.
func (b *Broker) WithRESTBaseURL(baseURL string) *Broker {
	out := *b
	out.restBaseURL = baseURL
	return &out
}

// tokenSource resolves the given installation and returns a token source
// scoped to it.
func (b *Broker) tokenSource(ctx context.Context, installationID int64) (oauth2.TokenSource, error) {
	installation, err := b.app.InstallationForID(ctx, strconv.FormatInt(installationID, 10))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve installation %d: %w", installationID, err)
	}

	return installation.AllReposOAuth2TokenSource(ctx, permissions), nil
}

// InstallationToken mints a token scoped to every repository the given
// installation has access to. Scoping to "all repos" rather than a single
// repository keeps the broker independent of go-github's repository
// modeling; the narrower a script's actual needs, the more the checkout and
// push paths (which take an explicit repository argument) constrain it in
// practice.
func (b *Broker) InstallationToken(ctx context.Context, installationID int64) (string, error) {
	ts, err := b.tokenSource(ctx, installationID)
	if err != nil {
		return "", err
	}

	token, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("failed to mint installation token: %w", err)
	}

	return token.AccessToken, nil
}

// RESTClient returns a [*github.Client] authenticated as the given
// installation, for use against the GitHub REST API (posting comments,
// opening pull requests).
func (b *Broker) RESTClient(ctx context.Context, installationID int64) (*github.Client, error) {
	ts, err := b.tokenSource(ctx, installationID)
	if err != nil {
		return nil, err
	}

	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if b.restBaseURL == "" {
		return client, nil
	}

	base, err := url.Parse(b.restBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rest base url %s: %w", b.restBaseURL, err)
	}
	client.BaseURL = base
	return client, nil
}
