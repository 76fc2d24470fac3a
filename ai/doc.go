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


// Package ai defines the embedding capability used by the pipeline.
//
// The package defines two interfaces:
//
//   - Embedder: Generates a vector embedding for one chunk of text
//   - AIProvider: Owns an Embedder and its client resources
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible endpoints through langchaingo
//   - ai/ollama: Ollama's native embeddings API
//   - ai/mock: Deterministic vectors and failure injection for tests and
//     offline runs
//
// Public constructors in the implementation packages return interface types.
// mock.NewMockEmbedder returns the concrete type so tests can inject behavior
// and inspect call counts.
//
// # Errors
//
// Implementations wrap transport failures (connection refused, DNS, timeouts)
// with ErrUnavailable. The embedding stage uses that distinction to tell a
// provider that was never reachable from one that rejected individual inputs.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithProvider(ai.ProviderOllama), ai.WithModel("nomic-embed-text"))
//	provider, err := ollama.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Hello world")
package ai
