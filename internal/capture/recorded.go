package capture

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// PlaybackState is the playback lifecycle of a recorded source.
type PlaybackState string

const (
	NoBufferSelected PlaybackState = "no_buffer_selected"
	BufferSelected   PlaybackState = "buffer_selected"
	Playing          PlaybackState = "playing"
)

// RecordedSource replays buffers from a BufferStore as if they were live.
type RecordedSource struct {
	name   string
	pacing Pacing
	log    *slog.Logger

	mu       sync.Mutex
	store    *BufferStore
	selected *Buffer
	session  *PlaybackSession
	finished *PlaybackSession
	latest   *Frame
	onFinish func(*Buffer)
}

// NewRecordedSource returns a recorded source with no store. log may be nil.
func NewRecordedSource(name string, pacing Pacing, log *slog.Logger) *RecordedSource {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if pacing == "" {
		pacing = Realtime
	}
	return &RecordedSource{
		name:   name,
		pacing: pacing,
		log:    log.With(slog.String("source", name), slog.String("kind", string(KindRecorded))),
	}
}

func (r *RecordedSource) Kind() Kind   { return KindRecorded }
func (r *RecordedSource) Name() string { return r.name }
func (r *RecordedSource) sealed()      {}

// IsActive reports whether the source is playing.
func (r *RecordedSource) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// State returns the playback state.
func (r *RecordedSource) State() PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.session != nil:
		return Playing
	case r.selected != nil:
		return BufferSelected
	default:
		return NoBufferSelected
	}
}

// Store returns the assigned store, or nil.
func (r *RecordedSource) Store() *BufferStore {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store
}

// Selected returns the selected buffer, or nil.
func (r *RecordedSource) Selected() *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

// Session returns the running playback session, or nil.
func (r *RecordedSource) Session() *PlaybackSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// OnFinish registers fn to be called when a playback reaches the end of its
// buffer. fn runs without the source lock held.
func (r *RecordedSource) OnFinish(fn func(*Buffer)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFinish = fn
}

// SetStore assigns the buffer store. Any playback is stopped and the
// selection is cleared.
func (r *RecordedSource) SetStore(store *BufferStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.finished = nil
	r.store = store
	r.selected = nil
	r.latest = nil
}

// SelectBuffer makes b the buffer used by the next playback. A playback in
// progress is stopped first; no frame of the old buffer is released after
// this call. A nil b clears the selection.
func (r *RecordedSource) SelectBuffer(b *Buffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil {
		return ErrNoBufferStore
	}
	if b != nil && !r.store.Contains(b) {
		return ErrBufferNotOwned
	}
	if r.stopLocked() {
		r.log.Info("playback stopped by buffer switch")
	}
	r.finished = nil
	r.selected = b
	if b != nil {
		r.log.Debug("buffer selected", slog.String("buffer", b.Name()))
	}
	return nil
}

// SelectFirst selects the store's first buffer when nothing is selected. It
// returns the selected buffer, which is nil for an empty store.
func (r *RecordedSource) SelectFirst() (*Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil {
		return nil, ErrNoBufferStore
	}
	if r.selected == nil {
		r.selected = r.store.first()
	}
	return r.selected, nil
}

// StartPlayback opens a playback session over the selected buffer.
func (r *RecordedSource) StartPlayback() (*PlaybackSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil {
		return nil, ErrNoBufferStore
	}
	if r.selected == nil {
		return nil, ErrNoBufferSelected
	}
	if r.session != nil {
		return nil, ErrAlreadyPlaying
	}
	r.session = newPlaybackSession(r.selected, r.pacing, r.finish)
	r.finished = nil
	r.latest = nil
	r.log.Info("playback started",
		slog.String("buffer", r.selected.Name()),
		slog.Int("frames", r.selected.Len()),
		slog.String("pacing", string(r.pacing)))
	return r.session, nil
}

// StopPlayback ends the running session. It is a no-op when idle.
func (r *RecordedSource) StopPlayback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopLocked() {
		r.log.Info("playback stopped")
	}
}

// Advance pulls every frame that is due at now from the running session and
// keeps the last one as the current frame.
func (r *RecordedSource) Advance(now time.Time) int {
	sess := r.Session()
	if sess == nil {
		return 0
	}

	n := 0
	var last Frame
	for {
		f, ok := sess.Next(now)
		if !ok {
			break
		}
		last = f
		n++
		if sess.Pacing() == AsFastAsPossible {
			break
		}
	}
	if n == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// The session may have been stopped or replaced while pulling, or have
	// finished on the last pull.
	if r.session == sess || r.finished == sess {
		r.latest = &last
	}
	return n
}

// CurrentFrame returns the last frame released by Advance.
func (r *RecordedSource) CurrentFrame() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return Frame{}, false
	}
	return r.latest.clone(), true
}

// stopLocked stops the running session and reports whether one was running.
func (r *RecordedSource) stopLocked() bool {
	if r.session == nil {
		return false
	}
	r.session.stop()
	r.session = nil
	return true
}

// finish is the session's end-of-buffer hook.
func (r *RecordedSource) finish(sess *PlaybackSession) {
	r.mu.Lock()
	if r.session != sess {
		r.mu.Unlock()
		return
	}
	r.session = nil
	r.finished = sess
	fn := r.onFinish
	r.mu.Unlock()

	r.log.Info("playback finished", slog.String("buffer", sess.Buffer().Name()))
	if fn != nil {
		fn(sess.Buffer())
	}
}
