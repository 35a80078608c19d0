package control

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"facecapture/internal/capture"
	"facecapture/internal/persist"
	"facecapture/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the control surface over HTTP using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics

	ingestReadLimit int64
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m, ingestReadLimit: DefaultIngestReadLimit}
}

// SetIngestReadLimit caps the size of one ingested websocket message. Larger
// messages close the connection. Non-positive n keeps the current limit.
func (h *Handler) SetIngestReadLimit(n int64) {
	if n > 0 {
		h.ingestReadLimit = n
	}
}

// Register mounts the control routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/refresh", h.Refresh)
	r.Get("/stores", h.ListStores)
	r.Route("/readers", func(r chi.Router) {
		r.Get("/", h.ListReaders)
		r.Post("/", h.CreateReader)
		r.Route("/{reader}", func(r chi.Router) {
			r.Get("/", h.GetReader)
			r.Put("/active", h.SetActive)
			r.Post("/live/connect", h.Connect)
			r.Post("/live/disconnect", h.Disconnect)
			r.Post("/live/recording", h.StartRecording)
			r.Delete("/live/recording", h.StopRecording)
			r.Post("/store", h.AssignStore)
			r.Get("/buffers", h.ListBuffers)
			r.Get("/buffers/{buffer}", h.GetBuffer)
			r.Put("/selection", h.SelectBuffer)
			r.Post("/playback", h.Play)
			r.Delete("/playback", h.Stop)
			r.Get("/frame", h.CurrentFrame)
			r.Get("/ingest", h.Ingest)
		})
	})
}

// ListReaders handles GET /readers.
func (h *Handler) ListReaders(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Readers())
}

// CreateReader handles POST /readers. Body: { "name": "actor-1" }.
func (h *Handler) CreateReader(w http.ResponseWriter, r *http.Request) {
	var req createReaderRequest
	if !h.decode(w, r, &req) {
		return
	}
	sr, err := h.svc.CreateReader(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newReaderStatus(sr))
}

// Refresh handles POST /refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.svc.Refresh()
	w.WriteHeader(http.StatusNoContent)
}

// ListStores handles GET /stores.
func (h *Handler) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.svc.Stores(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stores)
}

// GetReader handles GET /readers/{reader}.
func (h *Handler) GetReader(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(readerParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

// SetActive handles PUT /readers/{reader}/active. Body: { "source": "live" }.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.command(w, r, h.svc.SetActive(readerParam(r), req.Source))
}

// Connect handles POST /readers/{reader}/live/connect.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.svc.Connect(readerParam(r)))
}

// Disconnect handles POST /readers/{reader}/live/disconnect. When a
// recording was sealed by the disconnect, the new buffer is returned.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	buf, err := h.svc.Disconnect(readerParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if buf != nil {
		h.writeJSON(w, http.StatusOK, newBufferInfo(buf))
		return
	}
	h.command(w, r, nil)
}

// StartRecording handles POST /readers/{reader}/live/recording.
func (h *Handler) StartRecording(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.svc.StartRecording(readerParam(r)))
}

// StopRecording handles DELETE /readers/{reader}/live/recording.
// Body: { "name": "take-1" }.
func (h *Handler) StopRecording(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !h.decode(w, r, &req) {
		return
	}
	buf, err := h.svc.StopRecording(readerParam(r), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newBufferInfo(buf))
}

// AssignStore handles POST /readers/{reader}/store. The body is optional;
// { "name": "session-1" } picks a store other than the reader's own.
func (h *Handler) AssignStore(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	store, err := h.svc.AssignStore(r.Context(), readerParam(r), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nameRequest{Name: store.Name()})
}

// ListBuffers handles GET /readers/{reader}/buffers.
func (h *Handler) ListBuffers(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.ListBuffers(readerParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, infos)
}

// GetBuffer handles GET /readers/{reader}/buffers/{buffer}.
func (h *Handler) GetBuffer(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Buffer(readerParam(r), chi.URLParam(r, "buffer"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// SelectBuffer handles PUT /readers/{reader}/selection. Body: { "name": "take-1" }.
func (h *Handler) SelectBuffer(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.command(w, r, h.svc.SelectBuffer(readerParam(r), req.Name))
}

// Play handles POST /readers/{reader}/playback.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.svc.Play(readerParam(r)))
}

// Stop handles DELETE /readers/{reader}/playback.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.svc.Stop(readerParam(r)))
}

// CurrentFrame handles GET /readers/{reader}/frame. The payload is returned
// as-is with its capture timestamp in a header; 204 means no frame.
func (h *Handler) CurrentFrame(w http.ResponseWriter, r *http.Request) {
	f, ok, err := h.svc.CurrentFrame(readerParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set(frameTimestampHeader, strconv.FormatInt(f.Timestamp.Microseconds(), 10))
	w.WriteHeader(http.StatusOK)
	w.Write(f.Payload)
}

func readerParam(r *http.Request) string {
	return chi.URLParam(r, "reader")
}

// command writes the status of the current reader after a successful
// command, or the error.
func (h *Handler) command(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := h.svc.Status(readerParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.log.Debug("invalid request body", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// fail maps err to a status code and writes it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("command failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	} else {
		h.log.Info("command rejected",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()))
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrReaderNotFound),
		errors.Is(err, capture.ErrBufferNotFound),
		errors.Is(err, persist.ErrStoreNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidName),
		errors.Is(err, capture.ErrInvalidSource),
		errors.Is(err, capture.ErrInvalidBufferName):
		return http.StatusBadRequest
	case errors.Is(err, ErrReaderExists),
		errors.Is(err, capture.ErrNotConnected),
		errors.Is(err, capture.ErrAlreadyRecording),
		errors.Is(err, capture.ErrNotRecording),
		errors.Is(err, capture.ErrBufferNotOwned),
		errors.Is(err, capture.ErrNoBufferSelected),
		errors.Is(err, capture.ErrAlreadyPlaying),
		errors.Is(err, capture.ErrNoBufferStore),
		errors.Is(err, capture.ErrDuplicateBufferName):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("write response failed", slog.String("error", err.Error()))
	}
}
