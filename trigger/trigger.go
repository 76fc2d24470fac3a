// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package trigger turns new objects into pipeline executions.
//
// Two sources are provided:
//   - InboxWatcher watches a local directory with fsnotify, uploads each new
//     file under the upload prefix, and starts an execution for it
//   - BucketListener subscribes to MinIO bucket notifications and starts an
//     execution for every created object the trigger accepts
package trigger

import (
	"context"

	"github.com/poiesic/docpipe/coordinator"
)

// Starter starts an execution for an event. coordinator.Executor
// implementations satisfy it.
type Starter interface {
	Start(ctx context.Context, ev coordinator.Event) (string, error)
}
