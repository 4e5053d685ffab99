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
	"encoding/json"
	"net/http"

	"github.com/abcxyz/pkg/logging"
)

// handleQueueRemove serves dequeue over HTTP: pop the oldest job if one is
// queued, otherwise (when `?long_poll=true`) block until one arrives. The
// in-process worker loop does not use it; it dequeues from the queue
// directly.
func (s *Server) handleQueueRemove() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		if j, ok := s.queue.Remove(); ok {
			writeJobJSON(w, j)
			return
		}

		if r.URL.Query().Get("long_poll") != "true" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		ch := s.queue.RegisterWatcher()

		select {
		case j := <-ch:
			writeJobJSON(w, j)
		case <-ctx.Done():
			logger.DebugContext(ctx, "long poll dequeue cancelled", "error", ctx.Err())
		}
	})
}

func writeJobJSON(w http.ResponseWriter, j any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(j)
}
