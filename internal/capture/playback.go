package capture

import (
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"
)

// Pacing controls how fast a playback session releases frames.
type Pacing string

const (
	// Realtime honors the recorded inter-frame timing.
	Realtime Pacing = "realtime"
	// AsFastAsPossible releases one frame per pull.
	AsFastAsPossible Pacing = "fast"
)

// ParsePacing parses "realtime" or "fast" (case-insensitive).
func ParsePacing(s string) (Pacing, error) {
	switch Pacing(strings.ToLower(s)) {
	case Realtime:
		return Realtime, nil
	case AsFastAsPossible, "asfastaspossible":
		return AsFastAsPossible, nil
	default:
		return "", fmt.Errorf("unknown pacing %q", s)
	}
}

// PlaybackSession replays a buffer's frames in stored order. It is finite and
// cannot be restarted; once Done it yields nothing.
type PlaybackSession struct {
	buffer *Buffer
	pacing Pacing
	// onEnd is called once, without the session lock, when the frames run
	// out. It is not called after stop.
	onEnd func(*PlaybackSession)

	mu      sync.Mutex
	pos     int
	start   time.Time
	started bool
	done    bool
}

func newPlaybackSession(b *Buffer, pacing Pacing, onEnd func(*PlaybackSession)) *PlaybackSession {
	return &PlaybackSession{buffer: b, pacing: pacing, onEnd: onEnd}
}

// Buffer returns the buffer being replayed.
func (p *PlaybackSession) Buffer() *Buffer { return p.buffer }

// Pacing returns the session's pacing policy.
func (p *PlaybackSession) Pacing() Pacing { return p.pacing }

// Done reports whether the session has ended, naturally or by being stopped.
func (p *PlaybackSession) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Position returns the number of frames released so far.
func (p *PlaybackSession) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// Next releases the next frame if it is due at now. The realtime clock
// starts on the first call. It returns false when no frame is due yet or the
// session has ended.
func (p *PlaybackSession) Next(now time.Time) (Frame, bool) {
	p.mu.Lock()
	f, ok, ended := p.nextLocked(now, p.pacing)
	p.mu.Unlock()

	if ended && p.onEnd != nil {
		p.onEnd(p)
	}
	return f, ok
}

// All drains the remaining frames without pacing.
func (p *PlaybackSession) All() iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for {
			p.mu.Lock()
			f, ok, ended := p.nextLocked(time.Time{}, AsFastAsPossible)
			p.mu.Unlock()

			if ended && p.onEnd != nil {
				p.onEnd(p)
			}
			if !ok || !yield(f) {
				return
			}
		}
	}
}

// stop ends the session early. Subsequent pulls yield nothing.
func (p *PlaybackSession) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
}

// nextLocked returns the next due frame. ended is true exactly once, on the
// pull that observes the end of the buffer.
func (p *PlaybackSession) nextLocked(now time.Time, pacing Pacing) (f Frame, ok bool, ended bool) {
	if p.done {
		return Frame{}, false, false
	}
	frames := p.buffer.frames
	if p.pos >= len(frames) {
		p.done = true
		return Frame{}, false, true
	}
	if !p.started {
		p.start = now
		p.started = true
	}
	if pacing == Realtime {
		due := frames[p.pos].Timestamp - frames[0].Timestamp
		if now.Sub(p.start) < due {
			return Frame{}, false, false
		}
	}
	f = frames[p.pos].clone()
	p.pos++
	if p.pos == len(frames) {
		p.done = true
		ended = true
	}
	return f, true, ended
}
