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


package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Provider names accepted by Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// DefaultDimensions is the vector size of the mock provider.
const DefaultDimensions = 1536

// Config holds configuration for the embedding provider.
type Config struct {
	// Provider selects the implementation: "openai", "ollama" or "mock".
	Provider string

	// Host is the base URL of the provider API.
	// Example: "http://localhost:11434/v1" for an OpenAI-compatible server,
	// "http://localhost:11434" for Ollama's native API.
	Host string

	// Model is the embedding model identifier.
	// Example: "embeddinggemma", "text-embedding-3-small"
	Model string

	// APIKey is sent as a bearer token by the openai provider. Local servers
	// accept any value.
	APIKey string

	// Dimensions is the vector size produced by the mock provider.
	// Default: 1536
	Dimensions int
}

type ConfigOption func(*Config)

func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

func WithDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dims
	}
}

func DefaultConfig() *Config {
	return &Config{
		Provider:   ProviderOpenAI,
		Host:       "http://localhost:11434/v1",
		Model:      "embeddinggemma",
		APIKey:     "none",
		Dimensions: DefaultDimensions,
	}
}

func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize adjusts Host to the form the selected provider expects:
// OpenAI-compatible clients need the /v1 suffix, Ollama's native client must
// not have it.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Host == "" {
		return
	}
	c.Host = strings.TrimSuffix(c.Host, "/")
	switch c.Provider {
	case ProviderOpenAI:
		if !strings.HasSuffix(c.Host, "/v1") {
			c.Host = c.Host + "/v1"
		}
	case ProviderOllama:
		c.Host = strings.TrimSuffix(c.Host, "/v1")
	}
}

func (c *Config) Validate() error {
	// Normalize first to ensure the host is in the correct format
	c.Normalize()

	switch c.Provider {
	case ProviderOpenAI, ProviderOllama:
		if c.Host == "" {
			return errors.New("ai config: Host is required")
		}
		if c.Model == "" {
			return errors.New("ai config: Model is required")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("ai config: unknown Provider %q", c.Provider)
	}
	if c.Dimensions < 0 {
		return errors.New("ai config: Dimensions must not be negative")
	}
	return nil
}
