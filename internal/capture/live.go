package capture

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConnectionState is the connectivity of a live source.
type ConnectionState string

const (
	Disconnected ConnectionState = "disconnected"
	Connected    ConnectionState = "connected"
)

// RecordingState tells whether a live source has an open recording session.
type RecordingState string

const (
	RecordingIdle RecordingState = "idle"
	Recording     RecordingState = "recording"
)

// RecordingSession accumulates frames while a live source is recording.
type RecordingSession struct {
	startedAt time.Time
	frames    []Frame
}

// LiveSource is a source fed by the network collaborator through Push.
type LiveSource struct {
	name string
	log  *slog.Logger

	mu         sync.Mutex
	connection ConnectionState
	session    *RecordingSession
	target     *BufferStore
	latest     *Frame
	onSeal     func(*Buffer)
}

// NewLiveSource returns a disconnected live source. log may be nil.
func NewLiveSource(name string, log *slog.Logger) *LiveSource {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LiveSource{
		name:       name,
		log:        log.With(slog.String("source", name), slog.String("kind", string(KindLive))),
		connection: Disconnected,
	}
}

func (l *LiveSource) Kind() Kind   { return KindLive }
func (l *LiveSource) Name() string { return l.name }
func (l *LiveSource) sealed()      {}

// IsActive reports whether the source is connected.
func (l *LiveSource) IsActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connection == Connected
}

// State returns the connection and recording states.
func (l *LiveSource) State() (ConnectionState, RecordingState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connection, l.recordingLocked()
}

// Recording reports whether a recording session is open.
func (l *LiveSource) Recording() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session != nil
}

// RecordedFrames returns the number of frames captured by the open session.
func (l *LiveSource) RecordedFrames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return 0
	}
	return len(l.session.frames)
}

// SetTarget sets the store sealed recordings are appended to. While a
// session is open a nil store is ignored so the session can still be sealed.
func (l *LiveSource) SetTarget(store *BufferStore) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if store == nil && l.session != nil {
		return
	}
	l.target = store
}

// Target returns the store recordings are appended to, or nil.
func (l *LiveSource) Target() *BufferStore {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target
}

// OnSeal registers fn to be called after every sealed recording, including
// the ones sealed by Disconnect. fn runs without the source lock held.
func (l *LiveSource) OnSeal(fn func(*Buffer)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onSeal = fn
}

// Connect marks the source connected. Connecting twice is a no-op.
func (l *LiveSource) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connection == Connected {
		return nil
	}
	l.connection = Connected
	l.log.Info("live source connected")
	return nil
}

// Disconnect marks the source disconnected. An open recording is sealed
// under a generated name and returned; otherwise the buffer is nil.
// Disconnecting twice is a no-op.
func (l *LiveSource) Disconnect() (*Buffer, error) {
	l.mu.Lock()
	if l.connection == Disconnected {
		l.mu.Unlock()
		return nil, nil
	}
	l.connection = Disconnected
	l.latest = nil

	var (
		buf *Buffer
		err error
	)
	if l.session != nil {
		buf, err = l.sealLocked(l.uniqueNameLocked())
		if err != nil {
			// Recording must not outlive the connection; the loss is
			// reported to the caller instead.
			l.log.Error("seal on disconnect failed",
				slog.Int("frames", len(l.session.frames)),
				slog.String("error", err.Error()))
			l.session = nil
		}
	}
	onSeal := l.onSeal
	l.mu.Unlock()

	l.log.Info("live source disconnected")
	if buf != nil && onSeal != nil {
		onSeal(buf)
	}
	return buf, err
}

// StartRecording opens a recording session.
func (l *LiveSource) StartRecording() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connection != Connected {
		return ErrNotConnected
	}
	if l.session != nil {
		return ErrAlreadyRecording
	}
	if l.target == nil {
		return ErrNoBufferStore
	}
	l.session = &RecordingSession{startedAt: time.Now()}
	l.log.Info("recording started")
	return nil
}

// StopRecording seals the open session into a buffer named name, appends it
// to the target store and returns it. If the name is empty or already taken
// the session stays open.
func (l *LiveSource) StopRecording(name string) (*Buffer, error) {
	l.mu.Lock()
	if l.session == nil {
		l.mu.Unlock()
		return nil, ErrNotRecording
	}
	buf, err := l.sealLocked(name)
	onSeal := l.onSeal
	l.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if onSeal != nil {
		onSeal(buf)
	}
	return buf, nil
}

// Push delivers one frame from the network collaborator. Frames received
// while disconnected are rejected with ErrNotConnected. The payload is
// copied, so the caller may reuse its buffer.
func (l *LiveSource) Push(f Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connection != Connected {
		return ErrNotConnected
	}
	f = f.clone()
	l.latest = &f
	if l.session != nil {
		l.session.frames = append(l.session.frames, f)
	}
	return nil
}

// CurrentFrame returns the most recently pushed frame.
func (l *LiveSource) CurrentFrame() (Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.latest == nil {
		return Frame{}, false
	}
	return l.latest.clone(), true
}

func (l *LiveSource) recordingLocked() RecordingState {
	if l.session != nil {
		return Recording
	}
	return RecordingIdle
}

// sealLocked turns the open session into a buffer and appends it to the
// target store. The session is discarded only on success.
func (l *LiveSource) sealLocked(name string) (*Buffer, error) {
	if l.target == nil {
		return nil, ErrNoBufferStore
	}
	if name == "" {
		return nil, ErrInvalidBufferName
	}
	buf := &Buffer{name: name, frames: l.session.frames}
	if buf.frames == nil {
		buf.frames = []Frame{}
	}
	if err := l.target.Add(buf); err != nil {
		return nil, err
	}
	l.log.Info("recording sealed",
		slog.String("buffer", name),
		slog.Int("frames", len(buf.frames)),
		slog.Duration("elapsed", time.Since(l.session.startedAt)))
	l.session = nil
	return buf, nil
}

func (l *LiveSource) uniqueNameLocked() string {
	for {
		name := "recording-" + uuid.NewString()[:8]
		if l.target == nil || !l.target.Has(name) {
			return name
		}
	}
}
