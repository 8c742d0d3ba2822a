package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProvider_DeterministicAcrossCalls(t *testing.T) {
	t.Parallel()

	p, err := newLocalProvider(384)
	require.NoError(t, err)

	out1, err := p.Embed(context.Background(), []string{"backend engineer"}, EmbedModePassage)
	require.NoError(t, err)
	out2, err := p.Embed(context.Background(), []string{"backend engineer"}, EmbedModePassage)
	require.NoError(t, err)

	assert.Equal(t, out1, out2)
}

func TestLocalProvider_ProducesUnitVectors(t *testing.T) {
	t.Parallel()

	p, err := newLocalProvider(384)
	require.NoError(t, err)

	out, err := p.Embed(context.Background(), []string{"a senior backend role"}, EmbedModePassage)
	require.NoError(t, err)
	require.Len(t, out, 1)

	var sumSquares float64
	for _, x := range out[0] {
		sumSquares += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
}

func TestLocalProvider_QueryAndPassageModesDiffer(t *testing.T) {
	t.Parallel()

	p, err := newLocalProvider(384)
	require.NoError(t, err)

	query, err := p.Embed(context.Background(), []string{"search text"}, EmbedModeQuery)
	require.NoError(t, err)
	passage, err := p.Embed(context.Background(), []string{"search text"}, EmbedModePassage)
	require.NoError(t, err)

	assert.NotEqual(t, query[0], passage[0])
}

func TestNewProvider_Local(t *testing.T) {
	t.Parallel()

	p, err := NewProvider(Config{Provider: "local"})
	require.NoError(t, err)
	assert.Equal(t, 384, p.Dimensions())
	require.NoError(t, p.Close())
}

func TestNewProvider_UnsupportedReturnsError(t *testing.T) {
	t.Parallel()

	_, err := NewProvider(Config{Provider: "nonexistent"})
	require.Error(t, err)
}
