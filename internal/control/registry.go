package control

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"facecapture/internal/capture"
	"facecapture/internal/persist"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrReaderNotFound is returned for unknown reader names.
	ErrReaderNotFound = errors.New("stream reader not found")

	// ErrReaderExists is returned when creating a reader whose name is taken.
	ErrReaderExists = errors.New("stream reader already exists")

	// ErrInvalidName is returned for empty or unsafe reader and store names.
	ErrInvalidName = errors.New("invalid name")
)

// Registry is a concurrency-safe set of stream readers and the buffer
// stores they reference. Stores are loaded from a persist.Store once and
// shared by every reader that references the same name.
type Registry struct {
	mu      sync.RWMutex
	readers map[string]*capture.StreamReader
	stores  map[string]*capture.BufferStore

	persist persist.Store
	loads   singleflight.Group
	pacing  capture.Pacing
	log     *slog.Logger
}

// NewRegistry returns an empty registry backed by p. log may be nil.
func NewRegistry(p persist.Store, pacing capture.Pacing, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		readers: make(map[string]*capture.StreamReader),
		stores:  make(map[string]*capture.BufferStore),
		persist: p,
		pacing:  pacing,
		log:     log,
	}
}

// Create builds a reader with a live and a recorded source. If a persisted
// store shares the reader's name it is assigned to the recorded source.
func (r *Registry) Create(ctx context.Context, name string) (*capture.StreamReader, error) {
	if !validName(name) {
		return nil, ErrInvalidName
	}

	r.mu.RLock()
	_, exists := r.readers[name]
	r.mu.RUnlock()
	if exists {
		return nil, ErrReaderExists
	}

	store, err := r.Store(ctx, name, false)
	if err != nil && !errors.Is(err, persist.ErrStoreNotFound) {
		return nil, err
	}

	live := capture.NewLiveSource(name+"/live", r.log)
	recorded := capture.NewRecordedSource(name+"/playback", r.pacing, r.log)
	if store != nil {
		recorded.SetStore(store)
	}
	sr := capture.NewStreamReader(name, live, recorded, r.log)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.readers[name]; exists {
		return nil, ErrReaderExists
	}
	r.readers[name] = sr
	return sr, nil
}

// Get returns the named reader.
func (r *Registry) Get(name string) (*capture.StreamReader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sr, ok := r.readers[name]
	if !ok {
		return nil, ErrReaderNotFound
	}
	return sr, nil
}

// List returns all readers sorted by name.
func (r *Registry) List() []*capture.StreamReader {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*capture.StreamReader, 0, len(r.readers))
	for _, sr := range r.readers {
		out = append(out, sr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Store returns the named buffer store, loading it on first use. Concurrent
// first loads of the same name share one persistence read. With create set,
// a missing store is created and saved.
func (r *Registry) Store(ctx context.Context, name string, create bool) (*capture.BufferStore, error) {
	if !validName(name) {
		return nil, ErrInvalidName
	}

	r.mu.RLock()
	store, ok := r.stores[name]
	r.mu.RUnlock()
	if ok {
		return store, nil
	}

	v, err, _ := r.loads.Do(name, func() (interface{}, error) {
		r.mu.RLock()
		cached, ok := r.stores[name]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		loaded, err := r.persist.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.stores[name] = loaded
		r.log.Info("buffer store loaded",
			slog.String("store", name),
			slog.Int("buffers", loaded.Len()))
		return loaded, nil
	})
	if err == nil {
		return v.(*capture.BufferStore), nil
	}
	if !create || !errors.Is(err, persist.ErrStoreNotFound) {
		return nil, err
	}

	r.mu.Lock()
	if cached, ok := r.stores[name]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	store = capture.NewBufferStore(name)
	r.stores[name] = store
	r.mu.Unlock()

	if err := r.persist.Save(ctx, store); err != nil {
		r.mu.Lock()
		if r.stores[name] == store {
			delete(r.stores, name)
		}
		r.mu.Unlock()
		return nil, err
	}
	r.log.Info("buffer store created", slog.String("store", name))
	return store, nil
}

// StoreNames lists the names of all persisted stores.
func (r *Registry) StoreNames(ctx context.Context) ([]string, error) {
	return r.persist.List(ctx)
}

// cachedStore returns the named store if it has been loaded.
func (r *Registry) cachedStore(name string) (*capture.BufferStore, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	store, ok := r.stores[name]
	return store, ok
}

// Save persists store.
func (r *Registry) Save(ctx context.Context, store *capture.BufferStore) error {
	return r.persist.Save(ctx, store)
}

// Refresh reconnects the sources of every reader.
func (r *Registry) Refresh() {
	for _, sr := range r.List() {
		sr.RefreshSources()
	}
}

// ActiveReaderCount returns the number of readers with an active source.
// Used for metrics.
func (r *Registry) ActiveReaderCount() int {
	n := 0
	for _, sr := range r.List() {
		if sr.ActiveSource() != nil {
			n++
		}
	}
	return n
}

func validName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
