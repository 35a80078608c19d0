package control

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"facecapture/internal/capture"
	"facecapture/internal/platform/metrics"
)

// DefaultUpdateInterval is the default period of the update loop.
const DefaultUpdateInterval = 16 * time.Millisecond

// saveTimeout bounds persistence triggered from source hooks, which have no
// caller context.
const saveTimeout = 5 * time.Second

// Service applies the control commands to the readers in a Registry and
// persists stores whenever a recording is sealed.
type Service struct {
	reg     *Registry
	log     *slog.Logger
	metrics *metrics.Metrics

	// ingestMu serializes ingest open/close so a reconnecting device is
	// never disconnected by its previous socket.
	ingestMu sync.Mutex
	ingests  map[string]int
}

// NewService returns a Service over reg. log and m may be nil.
func NewService(reg *Registry, log *slog.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{reg: reg, log: log, metrics: m, ingests: make(map[string]int)}
}

// CreateReader creates a reader and installs the persistence and metrics
// hooks on its sources.
func (s *Service) CreateReader(ctx context.Context, name string) (*capture.StreamReader, error) {
	sr, err := s.reg.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	sr.Live().OnSeal(func(b *capture.Buffer) { s.sealed(sr, b) })
	sr.Recorded().OnFinish(func(b *capture.Buffer) {
		s.metrics.IncPlaybacksFinished()
		s.log.Debug("playback finished",
			slog.String("reader", sr.Name()),
			slog.String("buffer", b.Name()))
	})
	s.log.Info("stream reader created", slog.String("reader", name))
	return sr, nil
}

// Readers returns the status of every reader.
func (s *Service) Readers() []ReaderStatus {
	readers := s.reg.List()
	out := make([]ReaderStatus, 0, len(readers))
	for _, sr := range readers {
		out = append(out, s.readerStatus(sr))
	}
	return out
}

// Status returns the status of one reader.
func (s *Service) Status(reader string) (ReaderStatus, error) {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return ReaderStatus{}, err
	}
	return s.readerStatus(sr), nil
}

func (s *Service) readerStatus(sr *capture.StreamReader) ReaderStatus {
	st := newReaderStatus(sr)
	if st.Live != nil {
		st.Live.IngestConnections = s.IngestConnections(sr.Name())
	}
	return st
}

// Refresh reconnects the sources of every reader.
func (s *Service) Refresh() {
	s.reg.Refresh()
}

// SetActive makes the reader's source of the given kind active. An empty
// kind clears the active source.
func (s *Service) SetActive(reader string, kind capture.Kind) error {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return err
	}
	if kind == "" {
		return sr.SetActiveSource(nil)
	}
	src := sr.Source(kind)
	if src == nil {
		return capture.ErrInvalidSource
	}
	return sr.SetActiveSource(src)
}

// Connect connects the reader's live source.
func (s *Service) Connect(reader string) error {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return err
	}
	return sr.Live().Connect()
}

// Disconnect disconnects the reader's live source. A recording in progress
// is sealed and returned.
func (s *Service) Disconnect(reader string) (*capture.Buffer, error) {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return nil, err
	}
	return sr.Live().Disconnect()
}

// OpenIngest registers an ingest connection for the reader and connects its
// live source.
func (s *Service) OpenIngest(reader string) error {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return err
	}
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	if err := sr.Live().Connect(); err != nil {
		return err
	}
	s.ingests[reader]++
	return nil
}

// CloseIngest releases one ingest connection. The live source is
// disconnected only when the reader's last ingest connection closes; the
// returned buffer is the recording sealed by that disconnect, if any.
func (s *Service) CloseIngest(reader string) (*capture.Buffer, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	n, ok := s.ingests[reader]
	if !ok {
		return nil, nil
	}
	if n > 1 {
		s.ingests[reader] = n - 1
		return nil, nil
	}
	delete(s.ingests, reader)
	return s.Disconnect(reader)
}

// IngestConnections returns the number of open ingest connections of the
// reader.
func (s *Service) IngestConnections(reader string) int {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	return s.ingests[reader]
}

// Push ingests one frame into the reader's live source.
func (s *Service) Push(reader string, f capture.Frame) error {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return err
	}
	if err := sr.Live().Push(f); err != nil {
		s.metrics.IncFramesDropped()
		return err
	}
	s.metrics.IncFramesIngested()
	return nil
}

// StartRecording opens a recording session on the reader's live source.
func (s *Service) StartRecording(reader string) error {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return err
	}
	return sr.Live().StartRecording()
}

// StopRecording seals the reader's recording into a buffer named name.
func (s *Service) StopRecording(reader, name string) (*capture.Buffer, error) {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return nil, err
	}
	return sr.Live().StopRecording(name)
}

// AssignStore loads or creates the named store and assigns it to the
// reader's recorded source. An empty name uses the reader's name.
func (s *Service) AssignStore(ctx context.Context, reader, name string) (*capture.BufferStore, error) {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = reader
	}
	store, err := s.reg.Store(ctx, name, true)
	if err != nil {
		return nil, err
	}
	if sr.Recorded().Store() != store {
		sr.Recorded().SetStore(store)
	}
	sr.RefreshSources()
	return store, nil
}

// Stores lists the persisted buffer stores a reader can be assigned.
func (s *Service) Stores(ctx context.Context) ([]StoreInfo, error) {
	names, err := s.reg.StoreNames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StoreInfo, 0, len(names))
	for _, name := range names {
		info := StoreInfo{Name: name}
		if store, ok := s.reg.cachedStore(name); ok {
			info.Loaded = true
			info.Buffers = store.Len()
		}
		out = append(out, info)
	}
	return out, nil
}

// ListBuffers lists the buffers of the reader's store in insertion order.
func (s *Service) ListBuffers(reader string) ([]BufferInfo, error) {
	store, err := s.store(reader)
	if err != nil {
		return nil, err
	}
	out := make([]BufferInfo, 0, store.Len())
	for name := range store.ListBuffers() {
		b, err := store.FindByName(name)
		if err != nil {
			continue
		}
		out = append(out, newBufferInfo(b))
	}
	return out, nil
}

// Buffer describes one buffer of the reader's store.
func (s *Service) Buffer(reader, name string) (BufferInfo, error) {
	store, err := s.store(reader)
	if err != nil {
		return BufferInfo{}, err
	}
	b, err := store.FindByName(name)
	if err != nil {
		return BufferInfo{}, err
	}
	return newBufferInfo(b), nil
}

// SelectBuffer selects the named buffer for playback. A playback in
// progress is stopped.
func (s *Service) SelectBuffer(reader, name string) error {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return err
	}
	store := sr.Recorded().Store()
	if store == nil {
		return capture.ErrNoBufferStore
	}
	b, err := store.FindByName(name)
	if err != nil {
		return err
	}
	return sr.Recorded().SelectBuffer(b)
}

// Play starts playback of the selected buffer and makes the recorded source
// the reader's active source.
func (s *Service) Play(reader string) error {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return err
	}
	sess, err := sr.Recorded().StartPlayback()
	if err != nil {
		return err
	}
	if err := sr.SetActiveSource(sr.Recorded()); err != nil {
		sr.Recorded().StopPlayback()
		return err
	}
	s.metrics.IncPlaybacksStarted()
	s.log.Info("playback started",
		slog.String("reader", reader),
		slog.String("buffer", sess.Buffer().Name()))
	return nil
}

// Stop ends playback and clears the active source if it was the recorded
// source.
func (s *Service) Stop(reader string) error {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return err
	}
	if sr.ActiveSource() == capture.Source(sr.Recorded()) {
		if err := sr.SetActiveSource(nil); err != nil {
			return err
		}
	}
	sr.Recorded().StopPlayback()
	return nil
}

// CurrentFrame returns the latest frame of the reader's active source.
func (s *Service) CurrentFrame(reader string) (capture.Frame, bool, error) {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return capture.Frame{}, false, err
	}
	f, ok := sr.CurrentFrame()
	return f, ok, nil
}

// Tick runs one update step on every reader.
func (s *Service) Tick(now time.Time) {
	for _, sr := range s.reg.List() {
		sr.Advance(now)
	}
}

// Run calls Tick every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

func (s *Service) store(reader string) (*capture.BufferStore, error) {
	sr, err := s.reg.Get(reader)
	if err != nil {
		return nil, err
	}
	store := sr.Recorded().Store()
	if store == nil {
		return nil, capture.ErrNoBufferStore
	}
	return store, nil
}

// sealed persists the store a recording was sealed into.
func (s *Service) sealed(sr *capture.StreamReader, b *capture.Buffer) {
	s.metrics.IncRecordingsSealed()
	sr.RefreshSources()
	store := sr.Live().Target()
	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.reg.Save(ctx, store); err != nil {
		s.log.Error("save buffer store failed",
			slog.String("reader", sr.Name()),
			slog.String("store", store.Name()),
			slog.String("buffer", b.Name()),
			slog.String("error", err.Error()))
		return
	}
	s.log.Info("recording saved",
		slog.String("reader", sr.Name()),
		slog.String("store", store.Name()),
		slog.String("buffer", b.Name()),
		slog.Int("frames", b.Len()))
}
