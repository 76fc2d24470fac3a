package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/poiesic/docpipe/ai"
)

// DefaultModel is the model name reported by MockEmbedder.
const DefaultModel = "mock-titan-embed-text-v1"

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	dimensions int
	model      string

	mu        sync.Mutex
	callCount int
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		dimensions: ai.DefaultDimensions,
		model:      DefaultModel,
	}
}

// WithDimensions sets the vector size of default embeddings.
func (m *MockEmbedder) WithDimensions(dims int) *MockEmbedder {
	if dims > 0 {
		m.dimensions = dims
	}
	return m
}

// WithModel sets the reported model name.
func (m *MockEmbedder) WithModel(model string) *MockEmbedder {
	m.model = model
	return m
}

// WithEmbedTextFunc replaces the default behavior.
func (m *MockEmbedder) WithEmbedTextFunc(fn func(ctx context.Context, text string) ([]float32, error)) *MockEmbedder {
	m.EmbedTextFunc = fn
	return m
}

// EmbedText generates a deterministic embedding based on text hash.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.callCount++
	fn := m.EmbedTextFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return GenerateDeterministicVector(text, m.dimensions), nil
}

// Model returns the configured model name.
func (m *MockEmbedder) Model() string {
	return m.model
}

// CallCount returns the number of times EmbedText was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.EmbedTextFunc = nil
}

// GenerateDeterministicVector creates a unit vector of length dim from text.
// It uses FNV hash to ensure the same text always produces the same vector.
func GenerateDeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%2000)/1000.0 - 1.0
	}

	return ai.NormalizeVector(vector)
}
