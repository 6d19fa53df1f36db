package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestClientTTL(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := NewWithClock(clk.Now)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "unread:user:u1", "3", 30*time.Second))
	v, ok, err := c.Get(ctx, "unread:user:u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	clk.Advance(30 * time.Second)
	_, ok, err = c.Get(ctx, "unread:user:u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestClientDeletePrefix(t *testing.T) {
	c := New()
	ctx := context.Background()
	for _, k := range []string{"unread:user:a", "unread:guest:b", "unread_last:user:a", "other"} {
		require.NoError(t, c.Set(ctx, k, "1", time.Minute))
	}
	n, err := c.DeletePrefix(ctx, "unread:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, _ := c.Get(ctx, "unread_last:user:a")
	assert.True(t, ok)
	_, ok, _ = c.Get(ctx, "unread:user:a")
	assert.False(t, ok)
}
