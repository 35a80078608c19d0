package control

import (
	"facecapture/internal/capture"
)

// ReaderStatus is the API view of a stream reader and its sources.
type ReaderStatus struct {
	Name     string          `json:"name"`
	Active   capture.Kind    `json:"active,omitempty"`
	Live     *LiveStatus     `json:"live,omitempty"`
	Recorded *RecordedStatus `json:"recorded,omitempty"`
}

// LiveStatus describes a live source.
type LiveStatus struct {
	Name              string                  `json:"name"`
	Connection        capture.ConnectionState `json:"connection"`
	Recording         capture.RecordingState  `json:"recording"`
	RecordedFrames    int                     `json:"recorded_frames"`
	CanRecord         bool                    `json:"can_record"`
	IngestConnections int                     `json:"ingest_connections"`
}

// RecordedStatus describes a recorded source.
type RecordedStatus struct {
	Name     string                `json:"name"`
	Store    string                `json:"store,omitempty"`
	Selected string                `json:"selected,omitempty"`
	Playback capture.PlaybackState `json:"playback"`
	Position int                   `json:"position"`
}

// BufferInfo describes a stored buffer without its frames.
type BufferInfo struct {
	Name       string `json:"name"`
	Frames     int    `json:"frames"`
	DurationMS int64  `json:"duration_ms"`
}

// StoreInfo describes a persisted buffer store. Buffers is only known once
// the store has been loaded by a reader.
type StoreInfo struct {
	Name    string `json:"name"`
	Loaded  bool   `json:"loaded"`
	Buffers int    `json:"buffers,omitempty"`
}

func newBufferInfo(b *capture.Buffer) BufferInfo {
	return BufferInfo{
		Name:       b.Name(),
		Frames:     b.Len(),
		DurationMS: b.Duration().Milliseconds(),
	}
}

func newReaderStatus(sr *capture.StreamReader) ReaderStatus {
	st := ReaderStatus{Name: sr.Name()}
	if s := sr.ActiveSource(); s != nil {
		st.Active = s.Kind()
	}
	var store *capture.BufferStore
	if r := sr.Recorded(); r != nil {
		store = r.Store()
		rs := &RecordedStatus{Name: r.Name(), Playback: r.State()}
		if store != nil {
			rs.Store = store.Name()
		}
		if b := r.Selected(); b != nil {
			rs.Selected = b.Name()
		}
		if sess := r.Session(); sess != nil {
			rs.Position = sess.Position()
		}
		st.Recorded = rs
	}
	if l := sr.Live(); l != nil {
		conn, rec := l.State()
		st.Live = &LiveStatus{
			Name:           l.Name(),
			Connection:     conn,
			Recording:      rec,
			RecordedFrames: l.RecordedFrames(),
			CanRecord:      conn == capture.Connected && l.Target() != nil,
		}
	}
	return st
}

// createReaderRequest is the body of POST /readers.
type createReaderRequest struct {
	Name string `json:"name"`
}

// activeRequest is the body of PUT /readers/{reader}/active. An empty
// source clears the active source.
type activeRequest struct {
	Source capture.Kind `json:"source"`
}

// nameRequest carries a buffer or store name.
type nameRequest struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// frameTimestampHeader carries a frame's capture timestamp in microseconds.
const frameTimestampHeader = "X-Frame-Timestamp-Us"
