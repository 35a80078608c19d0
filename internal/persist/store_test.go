package persist

import (
	"context"
	"testing"

	"facecapture/internal/capture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_, err := s.Load(ctx, "session-1")
	require.ErrorIs(t, err, ErrStoreNotFound)

	store := sampleStore(t)
	require.NoError(t, s.Save(ctx, store))

	got, err := s.Load(ctx, "session-1")
	require.NoError(t, err)
	assertSameStore(t, store, got)
	assert.NotSame(t, store, got)
}

func TestInMemoryStore_Save_replaces(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	store := sampleStore(t)
	require.NoError(t, s.Save(ctx, store))

	b, err := capture.NewBuffer("late", nil)
	require.NoError(t, err)
	require.NoError(t, store.Add(b))
	require.NoError(t, s.Save(ctx, store))

	got, err := s.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Len())
}

func TestInMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	for _, name := range []string{"b", "a"} {
		require.NoError(t, s.Save(ctx, capture.NewBufferStore(name)))
	}
	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestInMemoryStore_Load_nameMismatch(t *testing.T) {
	s := NewInMemoryStore()
	data, err := Encode(capture.NewBufferStore("b"))
	require.NoError(t, err)
	s.docs["a"] = data

	_, err = s.Load(context.Background(), "a")
	require.ErrorIs(t, err, ErrNameMismatch)
}
