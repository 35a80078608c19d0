package capture

import (
	"fmt"
	"iter"
	"sync"
	"time"
)

// Buffer is a named, immutable, ordered sequence of frames. Buffers are
// created by sealing a recording session or by loading a persisted store.
type Buffer struct {
	name   string
	frames []Frame
}

// NewBuffer returns a sealed buffer holding a copy of frames.
func NewBuffer(name string, frames []Frame) (*Buffer, error) {
	if name == "" {
		return nil, ErrInvalidBufferName
	}
	return &Buffer{name: name, frames: cloneFrames(frames)}, nil
}

// Name returns the buffer's identity within its store.
func (b *Buffer) Name() string { return b.name }

// Len returns the number of frames.
func (b *Buffer) Len() int { return len(b.frames) }

// Frames returns a copy of the frame sequence.
func (b *Buffer) Frames() []Frame { return cloneFrames(b.frames) }

// All yields the frames in stored order.
func (b *Buffer) All() iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for _, f := range b.frames {
			if !yield(f.clone()) {
				return
			}
		}
	}
}

// Duration is the span between the first and last frame timestamps.
func (b *Buffer) Duration() time.Duration {
	if len(b.frames) < 2 {
		return 0
	}
	return b.frames[len(b.frames)-1].Timestamp - b.frames[0].Timestamp
}

// BufferStore is an ordered, named collection of buffers. Insertion order is
// preserved and names are unique. Reads are safe at any time; a store is
// expected to have a single writer.
type BufferStore struct {
	name string

	mu      sync.RWMutex
	buffers []*Buffer
	index   map[string]int
}

// NewBufferStore returns an empty store.
func NewBufferStore(name string) *BufferStore {
	return &BufferStore{
		name:  name,
		index: make(map[string]int),
	}
}

// Name returns the store's name.
func (s *BufferStore) Name() string { return s.name }

// Add appends b. It fails with ErrDuplicateBufferName if the name is taken.
func (s *BufferStore) Add(b *Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[b.name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateBufferName, b.name)
	}
	s.index[b.name] = len(s.buffers)
	s.buffers = append(s.buffers, b)
	return nil
}

// Has reports whether a buffer with the given name exists.
func (s *BufferStore) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[name]
	return ok
}

// Contains reports whether b itself (not just its name) is in the store.
func (s *BufferStore) Contains(b *Buffer) bool {
	if b == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[b.name]
	return ok && s.buffers[i] == b
}

// FindByName returns the buffer with the given name.
func (s *BufferStore) FindByName(name string) (*Buffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBufferNotFound, name)
	}
	return s.buffers[i], nil
}

// ListBuffers yields buffer names in insertion order. Each range over the
// returned sequence starts again from the first buffer.
func (s *BufferStore) ListBuffers() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, b := range s.Buffers() {
			if !yield(b.name) {
				return
			}
		}
	}
}

// Buffers returns a snapshot of the stored buffers in insertion order.
func (s *BufferStore) Buffers() []*Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Buffer, len(s.buffers))
	copy(out, s.buffers)
	return out
}

// Len returns the number of buffers.
func (s *BufferStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buffers)
}

// first returns the first buffer or nil.
func (s *BufferStore) first() *Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.buffers) == 0 {
		return nil
	}
	return s.buffers[0]
}
