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

package localrepo_test

import (
	"context"
	"testing"

	"github.com/abcxyz/benchbot/pkg/localrepo"
)

func TestClonerRejectsMalformedOwnerRepo(t *testing.T) {
	t.Parallel()

	cases := []string{"", "widgets", "owner/", "/widgets"}

	for _, ownerRepo := range cases {
		ownerRepo := ownerRepo
		t.Run(ownerRepo, func(t *testing.T) {
			t.Parallel()

			c := localrepo.NewCloner(t.TempDir())
			if _, err := c.Clone(context.Background(), ownerRepo, "main", ""); err == nil {
				t.Errorf("Clone(%q) error = nil, want an error", ownerRepo)
			}
		})
	}
}
