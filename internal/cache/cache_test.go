package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactKey(t *testing.T) {
	data := []byte("ISO-10303-21;")

	key := ArtifactKey(data, 0.1, 0.5)
	assert.Contains(t, key, "stl:")
	assert.Contains(t, key, ":0.1:0.5")

	t.Run("same inputs same key", func(t *testing.T) {
		assert.Equal(t, key, ArtifactKey([]byte("ISO-10303-21;"), 0.1, 0.5))
	})

	t.Run("different bytes different key", func(t *testing.T) {
		assert.NotEqual(t, key, ArtifactKey([]byte("ISO-10303-28;"), 0.1, 0.5))
	})

	t.Run("different tolerances different key", func(t *testing.T) {
		assert.NotEqual(t, key, ArtifactKey(data, 0.2, 0.5))
		assert.NotEqual(t, key, ArtifactKey(data, 0.1, 0.9))
	})
}

func TestMemoryClient_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(16)
	defer c.Close()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("stl-bytes"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("stl-bytes"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(16)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_EvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(4)
	defer c.Close()

	for i := 0; i < 8; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute))
	}

	assert.LessOrEqual(t, c.Len(), 4)
}
