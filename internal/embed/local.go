package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// localProvider is the process-wide embedder: a deterministic, pure
// encode([text]) -> f32[N][384] function, L2-normalized, with no implicit
// chunking beyond the caller's batch. The actual model weights and runtime
// that would back a real "local" provider are an external concern (asset
// download and cache); this implementation seeds each vector from a SHA-256
// digest of the text so the function is reproducible across process
// restarts without that runtime.
type localProvider struct {
	dimensions int
}

func newLocalProvider(dimensions int) (Provider, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("embed: dimensions must be positive, got %d", dimensions)
	}
	return &localProvider{dimensions: dimensions}, nil
}

// queryPrefix and passagePrefix mirror BGE-family instruction tuning: query
// embeddings are computed against a retrieval-instruction-prefixed string so
// query and passage vectors live in the same space asymmetrically.
const queryPrefix = "Represent this sentence for searching relevant passages: "

func (p *localProvider) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		input := text
		if mode == EmbedModeQuery {
			input = queryPrefix + text
		}
		out[i] = p.encode(input)
	}
	return out, nil
}

func (p *localProvider) encode(text string) []float32 {
	vec := make([]float32, p.dimensions)

	block := 0
	var hash [32]byte
	for j := 0; j < p.dimensions; j++ {
		offset := j % 32
		if offset == 0 {
			hash = sha256.Sum256(append([]byte(text), byte(block)))
			block++
		}
		end := offset + 4
		if end > 32 {
			end = 32
		}
		var buf [4]byte
		copy(buf[:], hash[offset:end])
		val := binary.BigEndian.Uint32(buf[:])
		vec[j] = (float32(val)/float32(1<<32))*2.0 - 1.0
	}

	return l2Normalize(vec)
}

func l2Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func (p *localProvider) Dimensions() int { return p.dimensions }

func (p *localProvider) Close() error { return nil }
