package persist

import (
	"context"
	"testing"

	"facecapture/internal/capture"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, prefix string) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client, err := DialRedis(context.Background(), "redis://"+srv.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, prefix), srv
}

func TestRedisStore_keys(t *testing.T) {
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "")
	assert.Equal(t, "facecapture:store:session-1", s.docKey("session-1"))
	assert.Equal(t, "facecapture:stores", s.namesKey())

	s = NewRedisStore(nil, "studio")
	assert.Equal(t, "studio:store:x", s.docKey("x"))
}

func TestDialRedis_badURL(t *testing.T) {
	_, err := DialRedis(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestRedisStore_SaveLoadList(t *testing.T) {
	ctx := context.Background()
	s, srv := newTestRedisStore(t, "studio")

	_, err := s.Load(ctx, "session-1")
	require.ErrorIs(t, err, ErrStoreNotFound)

	store := sampleStore(t)
	require.NoError(t, s.Save(ctx, store))
	require.NoError(t, s.Save(ctx, capture.NewBufferStore("other")))
	assert.True(t, srv.Exists("studio:store:session-1"))

	got, err := s.Load(ctx, "session-1")
	require.NoError(t, err)
	assertSameStore(t, store, got)

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "session-1"}, names)

	// Saving again replaces the document without duplicating the name.
	b, err := capture.NewBuffer("extra", nil)
	require.NoError(t, err)
	require.NoError(t, store.Add(b))
	require.NoError(t, s.Save(ctx, store))
	got, err = s.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, store.Len(), got.Len())
	names, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestRedisStore_Load_nameMismatch(t *testing.T) {
	ctx := context.Background()
	s, srv := newTestRedisStore(t, "")

	data, err := Encode(capture.NewBufferStore("b"))
	require.NoError(t, err)
	require.NoError(t, srv.Set(s.docKey("a"), string(data)))

	_, err = s.Load(ctx, "a")
	require.ErrorIs(t, err, ErrNameMismatch)
}

func TestRedisStore_serverDown(t *testing.T) {
	ctx := context.Background()
	s, srv := newTestRedisStore(t, "")
	srv.Close()

	_, err := s.Load(ctx, "session-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStoreNotFound)
	assert.Error(t, s.Save(ctx, capture.NewBufferStore("session-1")))
}
