package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// MockProvider is a test double producing deterministic unit vectors seeded
// from a hash of the input text. It is mode-agnostic on purpose: embedding
// the same string as a query and as a passage yields the same vector, which
// lets tests construct exact-match searches from known descriptions.
type MockProvider struct {
	mu          sync.Mutex
	dimensions  int
	closeCalled bool
	embedError  error
}

// NewMockProvider creates a mock provider with the standard 384-dim width.
func NewMockProvider() *MockProvider {
	return &MockProvider{dimensions: 384}
}

// SetEmbedError makes subsequent Embed calls fail with err.
func (p *MockProvider) SetEmbedError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.embedError = err
}

// Embed hashes each text into a deterministic, L2-normalized vector.
func (p *MockProvider) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.embedError != nil {
		return nil, p.embedError
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		hash := sha256.Sum256([]byte(text))

		vec := make([]float32, p.dimensions)
		for j := 0; j < p.dimensions; j++ {
			offset := (j * 4) % len(hash)
			val := binary.BigEndian.Uint32(hash[offset : offset+4])
			vec[j] = (float32(val)/float32(1<<32))*2.0 - 1.0
		}
		out[i] = l2Normalize(vec)
	}
	return out, nil
}

// Dimensions returns the mock's vector width.
func (p *MockProvider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dimensions
}

// Close records that it was called.
func (p *MockProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCalled = true
	return nil
}

// IsClosed reports whether Close has been called.
func (p *MockProvider) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalled
}
