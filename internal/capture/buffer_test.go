package capture

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuffer_rejectsEmptyName(t *testing.T) {
	_, err := NewBuffer("", nil)
	require.ErrorIs(t, err, ErrInvalidBufferName)
}

func TestBuffer_isImmutable(t *testing.T) {
	frames := testFrames(2, time.Millisecond)
	b := mustBuffer("a", frames)

	frames[0].Payload[0] = 'x'
	got := b.Frames()
	assert.Equal(t, "f1", string(got[0].Payload))

	got[1].Payload[0] = 'y'
	assert.Equal(t, "f2", string(b.Frames()[1].Payload))
}

func TestBuffer_Duration(t *testing.T) {
	assert.Zero(t, mustBuffer("empty", nil).Duration())
	assert.Equal(t, 20*time.Millisecond, mustBuffer("b", testFrames(3, 10*time.Millisecond)).Duration())
}

func TestBufferStore_ListBuffers_insertionOrderAndRestartable(t *testing.T) {
	s := NewBufferStore("s")
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, s.Add(mustBuffer(name, nil)))
	}

	seq := s.ListBuffers()
	assert.Equal(t, []string{"c", "a", "b"}, slices.Collect(seq))
	assert.Equal(t, []string{"c", "a", "b"}, slices.Collect(seq))

	var first []string
	for name := range seq {
		first = append(first, name)
		break
	}
	assert.Equal(t, []string{"c"}, first)
}

func TestBufferStore_FindByName(t *testing.T) {
	s := NewBufferStore("s")
	a := mustBuffer("a", nil)
	require.NoError(t, s.Add(a))

	got, err := s.FindByName("a")
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = s.FindByName("missing")
	assert.ErrorIs(t, err, ErrBufferNotFound)
}

func TestBufferStore_Add_duplicateName(t *testing.T) {
	s := NewBufferStore("s")
	first := mustBuffer("a", testFrames(1, 0))
	require.NoError(t, s.Add(first))

	err := s.Add(mustBuffer("a", nil))
	require.ErrorIs(t, err, ErrDuplicateBufferName)
	assert.Equal(t, 1, s.Len())

	got, _ := s.FindByName("a")
	assert.Same(t, first, got)
}

func TestBufferStore_Contains_identity(t *testing.T) {
	s := NewBufferStore("s")
	a := mustBuffer("a", nil)
	require.NoError(t, s.Add(a))

	assert.True(t, s.Contains(a))
	assert.False(t, s.Contains(mustBuffer("a", nil)))
	assert.False(t, s.Contains(nil))
}
