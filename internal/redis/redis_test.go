package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestETagKey(t *testing.T) {
	assert.Equal(t, "device:pi-001:playlists:etag", etagKey("pi-001"))
}

func TestMemoryETagCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryETagCache()

	_, ok, err := c.Get(ctx, "pi-001")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "pi-001", "abc"))
	require.NoError(t, c.Set(ctx, "pi-002", "def"))
	v, ok, _ := c.Get(ctx, "pi-001")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	require.NoError(t, c.Invalidate(ctx, "pi-001"))
	_, ok, _ = c.Get(ctx, "pi-001")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "pi-002")
	assert.True(t, ok)
}
