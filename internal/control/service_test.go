package control

import (
	"context"
	"testing"
	"time"

	"facecapture/internal/capture"
	"facecapture/internal/persist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *persist.InMemoryStore) {
	t.Helper()
	p := persist.NewInMemoryStore()
	reg := NewRegistry(p, capture.AsFastAsPossible, nil)
	svc := NewService(reg, nil, nil)
	_, err := svc.CreateReader(context.Background(), "actor")
	require.NoError(t, err)
	return svc, p
}

func record(t *testing.T, svc *Service, name string, payloads ...string) {
	t.Helper()
	require.NoError(t, svc.Connect("actor"))
	require.NoError(t, svc.StartRecording("actor"))
	for i, p := range payloads {
		require.NoError(t, svc.Push("actor", capture.Frame{
			Timestamp: time.Duration(i) * 10 * time.Millisecond,
			Payload:   []byte(p),
		}))
	}
	_, err := svc.StopRecording("actor", name)
	require.NoError(t, err)
}

func TestService_recordingRequiresStore(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.Connect("actor"))
	require.ErrorIs(t, svc.StartRecording("actor"), capture.ErrNoBufferStore)

	st, err := svc.Status("actor")
	require.NoError(t, err)
	assert.False(t, st.Live.CanRecord)
}

func TestService_recordPersistsStore(t *testing.T) {
	ctx := context.Background()
	svc, p := newTestService(t)
	_, err := svc.AssignStore(ctx, "actor", "")
	require.NoError(t, err)

	record(t, svc, "take-1", "a", "b", "c")

	saved, err := p.Load(ctx, "actor")
	require.NoError(t, err)
	b, err := saved.FindByName("take-1")
	require.NoError(t, err)
	assert.Equal(t, 3, b.Len())

	infos, err := svc.ListBuffers("actor")
	require.NoError(t, err)
	assert.Equal(t, []BufferInfo{{Name: "take-1", Frames: 3, DurationMS: 20}}, infos)

	st, err := svc.Status("actor")
	require.NoError(t, err)
	assert.Equal(t, "take-1", st.Recorded.Selected, "first buffer is selected on refresh")
}

func TestService_disconnectPersistsPartialRecording(t *testing.T) {
	ctx := context.Background()
	svc, p := newTestService(t)
	_, err := svc.AssignStore(ctx, "actor", "")
	require.NoError(t, err)

	require.NoError(t, svc.Connect("actor"))
	require.NoError(t, svc.StartRecording("actor"))
	require.NoError(t, svc.Push("actor", capture.Frame{Payload: []byte("f1")}))
	require.NoError(t, svc.Push("actor", capture.Frame{Payload: []byte("f2")}))

	buf, err := svc.Disconnect("actor")
	require.NoError(t, err)
	require.NotNil(t, buf)

	saved, err := p.Load(ctx, "actor")
	require.NoError(t, err)
	got, err := saved.FindByName(buf.Name())
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())

	st, err := svc.Status("actor")
	require.NoError(t, err)
	assert.Equal(t, capture.Disconnected, st.Live.Connection)
	assert.Equal(t, capture.RecordingIdle, st.Live.Recording)
}

func TestService_playAndStop(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.ErrorIs(t, svc.Play("actor"), capture.ErrNoBufferStore)

	_, err := svc.AssignStore(ctx, "actor", "")
	require.NoError(t, err)
	require.ErrorIs(t, svc.Play("actor"), capture.ErrNoBufferSelected)

	record(t, svc, "take-1", "a", "b")
	require.NoError(t, svc.SetActive("actor", capture.KindLive))

	require.NoError(t, svc.Play("actor"))
	st, err := svc.Status("actor")
	require.NoError(t, err)
	assert.Equal(t, capture.KindRecorded, st.Active)
	assert.Equal(t, capture.Playing, st.Recorded.Playback)
	require.ErrorIs(t, svc.Play("actor"), capture.ErrAlreadyPlaying)

	svc.Tick(time.Now())
	f, ok, err := svc.CurrentFrame("actor")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", string(f.Payload))

	require.NoError(t, svc.Stop("actor"))
	st, err = svc.Status("actor")
	require.NoError(t, err)
	assert.Empty(t, st.Active)
	assert.Equal(t, capture.BufferSelected, st.Recorded.Playback)

	_, ok, err = svc.CurrentFrame("actor")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_playbackFinishes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.AssignStore(ctx, "actor", "")
	require.NoError(t, err)
	record(t, svc, "take-1", "a", "b")

	require.NoError(t, svc.Play("actor"))
	now := time.Now()
	svc.Tick(now)
	svc.Tick(now)

	st, err := svc.Status("actor")
	require.NoError(t, err)
	assert.Equal(t, capture.BufferSelected, st.Recorded.Playback)

	f, ok, err := svc.CurrentFrame("actor")
	require.NoError(t, err)
	require.True(t, ok, "last frame stays current after the end")
	assert.Equal(t, "b", string(f.Payload))
}

func TestService_selectBufferStopsPlayback(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.AssignStore(ctx, "actor", "")
	require.NoError(t, err)
	record(t, svc, "A", "a1", "a2", "a3")
	record(t, svc, "B", "b1")

	require.NoError(t, svc.SelectBuffer("actor", "A"))
	require.NoError(t, svc.Play("actor"))
	svc.Tick(time.Now())

	require.NoError(t, svc.SelectBuffer("actor", "B"))
	st, err := svc.Status("actor")
	require.NoError(t, err)
	assert.Equal(t, "B", st.Recorded.Selected)
	assert.Equal(t, capture.BufferSelected, st.Recorded.Playback)

	require.ErrorIs(t, svc.SelectBuffer("actor", "missing"), capture.ErrBufferNotFound)
}

func TestService_SetActive(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.SetActive("actor", capture.KindLive))
	require.ErrorIs(t, svc.SetActive("actor", "camera"), capture.ErrInvalidSource)
	st, err := svc.Status("actor")
	require.NoError(t, err)
	assert.Equal(t, capture.KindLive, st.Active)

	require.NoError(t, svc.SetActive("actor", ""))
	st, err = svc.Status("actor")
	require.NoError(t, err)
	assert.Empty(t, st.Active)

	require.ErrorIs(t, svc.SetActive("nobody", capture.KindLive), ErrReaderNotFound)
}

func TestService_AssignStore_shared(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreateReader(ctx, "other")
	require.NoError(t, err)

	a, err := svc.AssignStore(ctx, "actor", "session")
	require.NoError(t, err)
	b, err := svc.AssignStore(ctx, "other", "session")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = svc.AssignStore(ctx, "actor", "../bad")
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.AssignStore(ctx, "actor", "")
	require.NoError(t, err)
	record(t, svc, "take-1", "a", "b", "c")
	require.NoError(t, svc.Play("actor"))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx, time.Millisecond) }()

	require.Eventually(t, func() bool {
		st, err := svc.Status("actor")
		return err == nil && st.Recorded.Playback == capture.BufferSelected
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestService_IngestRefCount(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.OpenIngest("actor"))
	require.NoError(t, svc.OpenIngest("actor"))
	assert.Equal(t, 2, svc.IngestConnections("actor"))

	buf, err := svc.CloseIngest("actor")
	require.NoError(t, err)
	assert.Nil(t, buf)
	st, err := svc.Status("actor")
	require.NoError(t, err)
	assert.Equal(t, capture.Connected, st.Live.Connection)

	_, err = svc.CloseIngest("actor")
	require.NoError(t, err)
	st, err = svc.Status("actor")
	require.NoError(t, err)
	assert.Equal(t, capture.Disconnected, st.Live.Connection)

	// Unbalanced closes are ignored.
	buf, err = svc.CloseIngest("actor")
	require.NoError(t, err)
	assert.Nil(t, buf)

	require.ErrorIs(t, svc.OpenIngest("nobody"), ErrReaderNotFound)
}
