package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateStore(t *testing.T, ttl time.Duration) (*RedisMetricsStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisMetricsStateStore(client, ttl, nil), mr
}

func TestRedisMetricsStateStoreRoundTrip(t *testing.T) {
	store, mr := newTestStateStore(t, time.Hour)
	ctx := context.Background()

	state := ReplayMetrics(sampleConversation()).State()
	require.NoError(t, store.Save(ctx, "conv-1", state))

	loaded, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, state, *loaded)
	assert.Equal(t, time.Hour, mr.TTL("metrics_state:conv-1"))
}

func TestRedisMetricsStateStoreMissingKey(t *testing.T) {
	store, _ := newTestStateStore(t, 0)
	loaded, err := store.Load(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisMetricsStateStoreExpires(t *testing.T) {
	store, mr := newTestStateStore(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "conv-2", NewMetricsState()))

	mr.FastForward(2 * time.Minute)
	loaded, err := store.Load(ctx, "conv-2")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisMetricsStateStoreDelete(t *testing.T) {
	store, mr := newTestStateStore(t, 0)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "conv-3", NewMetricsState()))
	assert.Equal(t, defaultMetricsStateTTL, mr.TTL("metrics_state:conv-3"))

	require.NoError(t, store.Delete(ctx, "conv-3"))
	assert.False(t, mr.Exists("metrics_state:conv-3"))
}

func TestRedisMetricsStateStoreCorruptPayload(t *testing.T) {
	store, mr := newTestStateStore(t, 0)
	require.NoError(t, mr.Set("metrics_state:bad", "{not json"))
	_, err := store.Load(context.Background(), "bad")
	require.Error(t, err)
}
