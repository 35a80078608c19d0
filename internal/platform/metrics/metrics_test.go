package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_countersAndGauges(t *testing.T) {
	m := New()
	m.IncFramesIngested()
	m.IncFramesIngested()
	m.IncRecordingsSealed()
	m.AddIngestConnections(1)

	body := scrape(t, m, func() { m.SetActiveReaders(3) })
	assert.Contains(t, body, "facecapture_frames_ingested_total 2")
	assert.Contains(t, body, "facecapture_recordings_sealed_total 1")
	assert.Contains(t, body, "facecapture_active_readers 3")
	assert.Contains(t, body, "facecapture_ingest_connections 1")
}

func TestMetrics_nilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRequests()
		m.IncErrors()
		m.IncPlaybacksStarted()
		m.SetActiveReaders(1)
	})
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readers", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readers/missing", nil))

	body := scrape(t, m, nil)
	assert.Contains(t, body, "facecapture_requests_total 2")
	assert.Contains(t, body, "facecapture_errors_total 1")
}
