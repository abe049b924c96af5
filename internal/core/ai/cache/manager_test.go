package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sicupang-ai/internal/infrastructure/config"
	"sicupang-ai/internal/pkg/common"
)

func newTestManager(maxSize int, ttl time.Duration) *Manager {
	return NewManager(&config.Config{
		Cache: config.CacheConfig{
			Enabled:         true,
			MaxSize:         maxSize,
			TTL:             ttl,
			CleanupInterval: time.Minute,
		},
	})
}

func TestManagerGetSet(t *testing.T) {
	m := newTestManager(8, time.Minute)
	require.NotNil(t, m)
	defer m.Close()

	ctx := context.Background()
	_, err := m.Get(ctx, "k1")
	assert.ErrorIs(t, err, common.ErrCacheMiss)

	require.NoError(t, m.Set(ctx, "k1", "v1"))
	got, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)
}

func TestManagerExpiry(t *testing.T) {
	m := newTestManager(8, 10*time.Millisecond)
	require.NotNil(t, m)
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k1", "v1"))

	time.Sleep(20 * time.Millisecond)
	_, err := m.Get(ctx, "k1")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
}

func TestManagerEvictsLRUWhenFull(t *testing.T) {
	m := newTestManager(3, time.Minute)
	require.NotNil(t, m)
	defer m.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("k%d", i), "v"))
	}

	// touch k0 and k1 so k2 becomes the least used entry
	_, err := m.Get(ctx, "k0")
	require.NoError(t, err)
	_, err = m.Get(ctx, "k1")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "k3", "v"))

	_, err = m.Get(ctx, "k2")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
	_, err = m.Get(ctx, "k0")
	assert.NoError(t, err)
}

func TestManagerDisabled(t *testing.T) {
	m := NewManager(&config.Config{Cache: config.CacheConfig{Enabled: false}})
	assert.Nil(t, m)
}
