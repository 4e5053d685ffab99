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
	"testing"

	"github.com/abcxyz/pkg/testutil"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name:    "missing_app_id",
			cfg:     &Config{GitHubPrivateKey: "pem"},
			wantErr: `GITHUB_APP_ID is required`,
		},
		{
			name:    "missing_private_key",
			cfg:     &Config{GitHubAppID: "123"},
			wantErr: `GITHUB_PRIVATE_KEY or GITHUB_PRIVATE_KEY_SECRET_ID is required`,
		},
		{
			name: "both_private_key_sources",
			cfg: &Config{
				GitHubAppID:              "123",
				GitHubPrivateKey:         "pem",
				GitHubPrivateKeySecretID: "projects/p/secrets/s/versions/1",
			},
			wantErr: `only one of GITHUB_PRIVATE_KEY, GITHUB_PRIVATE_KEY_SECRET_ID may be set`,
		},
		{
			name: "success_with_inline_key",
			cfg:  &Config{GitHubAppID: "123", GitHubPrivateKey: "pem"},
		},
		{
			name: "success_with_secret_id",
			cfg:  &Config{GitHubAppID: "123", GitHubPrivateKeySecretID: "projects/p/secrets/s/versions/1"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.cfg.Validate()
			if diff := testutil.DiffErrString(err, tc.wantErr); diff != "" {
				t.Errorf("Validate() got unexpected err: %s", diff)
			}
		})
	}
}
