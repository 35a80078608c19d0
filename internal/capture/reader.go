package capture

import (
	"io"
	"log/slog"
	"time"

	"go.uber.org/atomic"
)

// activeSlot boxes the active source so it can be swapped with one pointer
// store. A nil slot means no source is active.
type activeSlot struct {
	source Source
}

// StreamReader forwards frames from its single active source downstream.
// SetActiveSource is the only way to change the active source.
type StreamReader struct {
	name     string
	live     *LiveSource
	recorded *RecordedSource
	log      *slog.Logger

	active atomic.Pointer[activeSlot]
}

// NewStreamReader returns a reader that may choose between live and
// recorded. Either may be nil when the reader lacks that source. The live
// source records into the recorded source's store.
func NewStreamReader(name string, live *LiveSource, recorded *RecordedSource, log *slog.Logger) *StreamReader {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sr := &StreamReader{
		name:     name,
		live:     live,
		recorded: recorded,
		log:      log.With(slog.String("reader", name)),
	}
	sr.RefreshSources()
	return sr
}

// Name returns the reader's name.
func (sr *StreamReader) Name() string { return sr.name }

// Live returns the reader's live source, or nil.
func (sr *StreamReader) Live() *LiveSource { return sr.live }

// Recorded returns the reader's recorded source, or nil.
func (sr *StreamReader) Recorded() *RecordedSource { return sr.recorded }

// Sources returns the sources the reader may activate.
func (sr *StreamReader) Sources() []Source {
	out := make([]Source, 0, 2)
	if sr.live != nil {
		out = append(out, sr.live)
	}
	if sr.recorded != nil {
		out = append(out, sr.recorded)
	}
	return out
}

// Source returns the reader's source of the given kind, or nil.
func (sr *StreamReader) Source(k Kind) Source {
	switch k {
	case KindLive:
		if sr.live != nil {
			return sr.live
		}
	case KindRecorded:
		if sr.recorded != nil {
			return sr.recorded
		}
	}
	return nil
}

// SetActiveSource replaces the active source. A nil s clears it. Sources
// the reader does not own are rejected with ErrInvalidSource and the active
// source is left unchanged.
func (sr *StreamReader) SetActiveSource(s Source) error {
	if s == nil {
		sr.active.Store(nil)
		sr.log.Debug("active source cleared")
		return nil
	}
	if !sr.owns(s) {
		return ErrInvalidSource
	}
	sr.active.Store(&activeSlot{source: s})
	sr.log.Debug("active source set",
		slog.String("source", s.Name()),
		slog.String("kind", string(s.Kind())))
	return nil
}

// ActiveSource returns the active source, or nil.
func (sr *StreamReader) ActiveSource() Source {
	if slot := sr.active.Load(); slot != nil {
		return slot.source
	}
	return nil
}

// CurrentFrame returns the latest frame of the active source. It is false
// when no source is active or the source has produced nothing yet.
func (sr *StreamReader) CurrentFrame() (Frame, bool) {
	s := sr.ActiveSource()
	if s == nil {
		return Frame{}, false
	}
	return s.CurrentFrame()
}

// Advance runs one update step: due playback frames are released.
func (sr *StreamReader) Advance(now time.Time) int {
	if sr.recorded == nil {
		return 0
	}
	return sr.recorded.Advance(now)
}

// RefreshSources reconnects the reader's dependencies: the live source
// records into the recorded source's current store, and the recorded source
// falls back to the store's first buffer when nothing is selected. Call it
// whenever the embedding application's sources or stores change.
func (sr *StreamReader) RefreshSources() {
	if sr.recorded == nil {
		if sr.live != nil {
			sr.live.SetTarget(nil)
		}
		return
	}
	store := sr.recorded.Store()
	if sr.live != nil {
		sr.live.SetTarget(store)
	}
	if store != nil {
		if _, err := sr.recorded.SelectFirst(); err != nil {
			sr.log.Warn("select first buffer failed", slog.String("error", err.Error()))
		}
	}
}

func (sr *StreamReader) owns(s Source) bool {
	switch s.Kind() {
	case KindLive:
		return sr.live != nil && Source(sr.live) == s
	case KindRecorded:
		return sr.recorded != nil && Source(sr.recorded) == s
	}
	return false
}
