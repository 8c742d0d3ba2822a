package embed

import (
	"context"
	"fmt"
)

// BatchProgress reports how far a batched embedding run has gotten.
type BatchProgress struct {
	BatchIndex     int // current batch, 1-indexed
	TotalBatches   int
	ProcessedTexts int
	TotalTexts     int
}

// EmbedWithProgress embeds texts in fixed-size batches, sending a progress
// update after each batch. progressCh may be nil to disable reporting; when
// non-nil the caller owns draining and closing it. Results are returned in
// input order.
func EmbedWithProgress(ctx context.Context, provider Provider, texts []string, mode EmbedMode, batchSize int, progressCh chan<- BatchProgress) ([][]float32, error) {
	total := len(texts)
	if total == 0 {
		return [][]float32{}, nil
	}

	numBatches := (total + batchSize - 1) / batchSize
	results := make([][]float32, total)

	processed := 0
	for batchIdx := 0; batchIdx < numBatches; batchIdx++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		start := batchIdx * batchSize
		end := start + batchSize
		if end > total {
			end = total
		}

		vecs, err := provider.Embed(ctx, texts[start:end], mode)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d/%d: %w", batchIdx+1, numBatches, err)
		}
		copy(results[start:], vecs)

		processed += end - start
		if progressCh != nil {
			progressCh <- BatchProgress{
				BatchIndex:     batchIdx + 1,
				TotalBatches:   numBatches,
				ProcessedTexts: processed,
				TotalTexts:     total,
			}
		}
	}

	return results, nil
}
