package worker

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aescanero/dago-libs/pkg/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.StateStorage = (*RedisStateStore)(nil)

func newTestStore(t *testing.T) (*RedisStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStateStore(client, nil), mr
}

func TestRedisStateStoreRoundTrip(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "e-1", map[string]interface{}{"inputs": map[string]interface{}{"a": 1}}))
	assert.True(t, mr.Exists(StateKeyPrefix+"e-1"))

	st, err := store.Load(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": 1.0}, st["inputs"])

	exists, err := store.Exists(ctx, "e-1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.SetTTL(ctx, "e-1", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL(StateKeyPrefix+"e-1"))

	require.NoError(t, store.Delete(ctx, "e-1"))
	_, err = store.Load(ctx, "e-1")
	assert.Error(t, err)
}

func TestRedisStateStoreSaveState(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveState(ctx, map[string]interface{}{"graph_id": "g-1"}))
	require.NoError(t, store.SaveState(ctx, map[string]interface{}{"execution_id": "e-2"}))
	assert.Error(t, store.SaveState(ctx, map[string]interface{}{"other": "x"}))
	assert.Error(t, store.SaveState(ctx, "not a map"))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	sort.Strings(ids)
	assert.Equal(t, []string{"e-2", "g-1"}, ids)

	got, err := store.GetState(ctx, "g-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRedisStateStoreCorruptState(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set(StateKeyPrefix+"bad", "{not json"))

	_, err := store.Load(context.Background(), "bad")
	assert.Error(t, err)
}
