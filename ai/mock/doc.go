// Package mock provides test double implementations of AI service interfaces.
//
// MockEmbedder produces deterministic pseudo-random unit vectors seeded by an
// FNV hash of the input text, so identical text always maps to the same
// vector. It is also the provider used for offline runs.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	embedder := mock.NewMockEmbedder()
//	vector, err := embedder.EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder().
//	    WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
//	        return nil, ai.ErrUnavailable
//	    })
//
//	// Check call counts
//	count := embedder.CallCount()
package mock
