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


package openai

import (
	"log/slog"

	"github.com/poiesic/docpipe/ai"
)

// Provider serves embeddings from an OpenAI-compatible endpoint.
type Provider struct {
	embedder *Embedder
	logger   *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider validates config and builds the embedder. Nothing is sent to
// the endpoint until the first EmbedText call.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	return &Provider{
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-provider", "host", config.Host, "model", config.Model),
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close is a no-op; langchaingo's HTTP client holds no resources of its own.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	return nil
}
