package control

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"facecapture/internal/capture"

	"github.com/gorilla/websocket"
)

// frameHeaderLen is the size of the big-endian capture timestamp, in
// microseconds, that prefixes every ingested frame.
const frameHeaderLen = 8

// DefaultIngestReadLimit is the default cap on one ingested message.
const DefaultIngestReadLimit = 1 << 20

var errShortFrame = errors.New("frame message shorter than header")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// EncodeFrame builds an ingestion message for f.
func EncodeFrame(f capture.Frame) []byte {
	msg := make([]byte, frameHeaderLen+len(f.Payload))
	binary.BigEndian.PutUint64(msg, uint64(f.Timestamp.Microseconds()))
	copy(msg[frameHeaderLen:], f.Payload)
	return msg
}

// DecodeFrame parses an ingestion message.
func DecodeFrame(msg []byte) (capture.Frame, error) {
	if len(msg) < frameHeaderLen {
		return capture.Frame{}, errShortFrame
	}
	us := int64(binary.BigEndian.Uint64(msg))
	return capture.Frame{
		Timestamp: time.Duration(us) * time.Microsecond,
		Payload:   msg[frameHeaderLen:],
	}, nil
}

// Ingest handles GET /readers/{reader}/ingest. It upgrades to a websocket
// and acts as the network collaborator of the reader's live source: the
// source is connected while the socket is open and every binary message is
// pushed as one frame. Closing the reader's last open socket disconnects
// the source, sealing any recording in progress; a device may reconnect
// before its previous socket is torn down.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	reader := readerParam(r)
	if _, err := h.svc.Status(reader); err != nil {
		h.fail(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Info("ingest upgrade failed", slog.String("reader", reader), slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.ingestReadLimit)

	if err := h.svc.OpenIngest(reader); err != nil {
		h.log.Error("ingest connect failed", slog.String("reader", reader), slog.String("error", err.Error()))
		return
	}
	h.metrics.AddIngestConnections(1)
	h.log.Info("ingest connected", slog.String("reader", reader), slog.String("remote", r.RemoteAddr))

	defer func() {
		h.metrics.AddIngestConnections(-1)
		buf, err := h.svc.CloseIngest(reader)
		attrs := []any{slog.String("reader", reader)}
		if buf != nil {
			attrs = append(attrs, slog.String("sealed", buf.Name()), slog.Int("frames", buf.Len()))
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			h.log.Error("ingest disconnect failed", attrs...)
			return
		}
		h.log.Info("ingest disconnected", attrs...)
	}()

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				h.metrics.IncFramesDropped()
				h.log.Warn("ingest frame too large", slog.String("reader", reader), slog.Int64("limit", h.ingestReadLimit))
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("ingest connection lost", slog.String("reader", reader), slog.String("error", err.Error()))
			}
			return
		}
		if mt != websocket.BinaryMessage {
			h.metrics.IncFramesDropped()
			continue
		}
		f, err := DecodeFrame(msg)
		if err != nil {
			h.log.Debug("malformed frame", slog.String("reader", reader), slog.String("error", err.Error()))
			h.metrics.IncFramesDropped()
			continue
		}
		if err := h.svc.Push(reader, f); err != nil {
			h.log.Debug("frame dropped", slog.String("reader", reader), slog.String("error", err.Error()))
		}
	}
}
