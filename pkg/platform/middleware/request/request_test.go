package request

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	var gotID, gotTrace, gotCorrelation string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
		gotTrace = requestcontext.TraceID(r.Context())
		gotCorrelation = requestcontext.CorrelationID(r.Context())
	}))

	t.Run("caller id is reused and echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		req.Header.Set(HeaderTraceID, "trace-1")
		req.Header.Set(HeaderCorrelationID, "corr-1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, "req-123", gotID)
		assert.Equal(t, "req-123", rr.Header().Get(HeaderRequestID))
		assert.Equal(t, "trace-1", gotTrace)
		assert.Equal(t, "corr-1", gotCorrelation)
	})

	t.Run("missing or malformed id is replaced", func(t *testing.T) {
		for _, header := range []string{"", "has space", strings.Repeat("a", maxIDLength+1)} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderRequestID, header)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.NotEmpty(t, gotID)
			assert.NotEqual(t, header, gotID)
			assert.Equal(t, gotID, rr.Header().Get(HeaderRequestID))
		}
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/descriptions/resolve", nil)
	req.Header.Set(HeaderRequestID, "req-9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	require.NotEmpty(t, line)
	assert.Contains(t, line, `"level":"ERROR"`)
	assert.Contains(t, line, `"request_id":"req-9"`)
	assert.Contains(t, line, `"status":500`)
	assert.Contains(t, line, `"path":"/v1/descriptions/resolve"`)
}
