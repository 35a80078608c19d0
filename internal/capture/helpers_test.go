package capture

import (
	"fmt"
	"time"
)

func testFrames(n int, step time.Duration) []Frame {
	frames := make([]Frame, n)
	for i := range frames {
		frames[i] = Frame{
			Timestamp: time.Duration(i) * step,
			Payload:   []byte(fmt.Sprintf("f%d", i+1)),
		}
	}
	return frames
}

func mustBuffer(name string, frames []Frame) *Buffer {
	b, err := NewBuffer(name, frames)
	if err != nil {
		panic(err)
	}
	return b
}

func newReader() (*StreamReader, *LiveSource, *RecordedSource, *BufferStore) {
	store := NewBufferStore("takes")
	live := NewLiveSource("network", nil)
	recorded := NewRecordedSource("playback", AsFastAsPossible, nil)
	recorded.SetStore(store)
	sr := NewStreamReader("reader", live, recorded, nil)
	return sr, live, recorded, store
}
