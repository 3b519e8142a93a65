package flags

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func newTestStore(t *testing.T) *Store {
	store, err := NewStore(setupTestRedis(t), nil)
	require.NoError(t, err)
	return store
}

func TestStore_UpsertGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	flag, err := store.Get(ctx, KeyInstant)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, flag)

	flag, err = store.Upsert(ctx, KeyInstant, true)
	require.NoError(t, err)
	assert.Equal(t, KeyInstant, flag.Key)
	assert.True(t, flag.Value)
	assert.NotZero(t, flag.UpdatedAt)

	got, err := store.Get(ctx, KeyInstant)
	require.NoError(t, err)
	assert.Equal(t, flag.Value, got.Value)
	assert.True(t, flag.UpdatedAt.Equal(got.UpdatedAt))

	store.now = func() time.Time { return flag.UpdatedAt.Add(time.Second) }
	flag2, err := store.Upsert(ctx, KeyInstant, false)
	require.NoError(t, err)
	assert.True(t, flag2.UpdatedAt.After(flag.UpdatedAt))

	got, err = store.Get(ctx, KeyInstant)
	require.NoError(t, err)
	assert.False(t, got.Value)
}

func TestStore_Enabled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.True(t, store.Enabled(ctx, KeySubmit, false), "known gate uses its default")
	assert.False(t, store.Enabled(ctx, KeyInstant, true), "known gate uses its default")
	assert.True(t, store.Enabled(ctx, "custom.gate", true))

	_, err := store.Upsert(ctx, KeySubmit, false)
	require.NoError(t, err)
	assert.False(t, store.Enabled(ctx, KeySubmit, true))
}

func TestStore_EnabledFallsBackWhenRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	store, err := NewStore(client, nil)
	require.NoError(t, err)

	assert.True(t, store.Enabled(context.Background(), KeyTriggerOrders, false))
	assert.False(t, store.Enabled(context.Background(), KeyInstant, true))
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, KeyTriggerOrders, false)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, KeyTriggerOrders))
	_, err = store.Get(ctx, KeyTriggerOrders)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, store.Enabled(ctx, KeyTriggerOrders, false))

	assert.NoError(t, store.Delete(ctx, "nonexistent.flag"))
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	flags, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, flags)

	want := map[string]bool{KeySubmit: true, KeyInstant: false, KeyTriggerOrders: true}
	for key, value := range want {
		_, err := store.Upsert(ctx, key, value)
		require.NoError(t, err)
	}

	flags, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, flags, len(want))

	got := make(map[string]bool)
	for _, f := range flags {
		got[f.Key] = f.Value
	}
	assert.Equal(t, want, got)
}

func TestStore_ConcurrentOperations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const workers = 10
	const ops = 50

	done := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < ops; j++ {
				key := fmt.Sprintf("gate.%d.%d", id, j)
				value := (id+j)%2 == 0

				_, err := store.Upsert(ctx, key, value)
				assert.NoError(t, err)
				assert.Equal(t, value, store.Enabled(ctx, key, !value))
			}
		}(i)
	}
	for i := 0; i < workers; i++ {
		<-done
	}

	flags, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, flags, workers*ops)
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{KeySubmit, KeyInstant, KeyTriggerOrders, "flag123", "a", "very.long-flag_name"} {
		assert.NoError(t, ValidateKey(key), key)
	}
	for _, key := range []string{"", " ", "flag with spaces", "flag:with:colons", "flag\twith\ttabs", "flag\nnewline"} {
		err := ValidateKey(key)
		if assert.Error(t, err, "%q should be invalid", key) {
			assert.Contains(t, err.Error(), "invalid flag key")
		}
	}
}

func TestNewStore_NilClient(t *testing.T) {
	_, err := NewStore(nil, nil)
	assert.Error(t, err)
}
