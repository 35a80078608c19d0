// Package capture implements the stream source control model: live and
// recorded sources, recording and playback sessions, buffer stores, and the
// stream reader that holds the single active source.
package capture

import "time"

// Frame is one captured sample. Payload is opaque to this package.
type Frame struct {
	// Timestamp is the capture time on the device clock.
	Timestamp time.Duration
	Payload   []byte
}

// clone returns a frame whose payload does not alias f's.
func (f Frame) clone() Frame {
	if f.Payload == nil {
		return f
	}
	p := make([]byte, len(f.Payload))
	copy(p, f.Payload)
	return Frame{Timestamp: f.Timestamp, Payload: p}
}

func cloneFrames(frames []Frame) []Frame {
	out := make([]Frame, len(frames))
	for i, f := range frames {
		out[i] = f.clone()
	}
	return out
}
