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


// Package coordinator sequences the pipeline stages for one uploaded document.
//
// A Coordinator drives a run through the states
//
//	idle → triggered → extracting → embedding → indexing → summarizing → completed
//
// with failed reachable from any non-terminal state. Each stage receives the
// previous stage's full output payload. Only capability failures are
// retried, with exponential backoff; validation and precondition failures
// halt the run immediately. Artifacts written before a failure are left in
// place.
//
// Every transition is persisted as a core.RunRecord through a
// storage.RunRepository when one is configured.
//
// Executors start runs asynchronously:
//   - LocalExecutor runs them on an in-process worker pool
//   - queue.Queue hands them to workers over a Redis list
//   - temporal.Starter starts a Temporal workflow per document
package coordinator
