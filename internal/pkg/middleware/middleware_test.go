package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelpress/internal/pkg/logger"
)

func testLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(logger.Config{
		Level:       "debug",
		Format:      "json",
		Output:      buf,
		ServiceName: "test",
	})
}

func TestRequestID(t *testing.T) {
	t.Run("generates an ID when absent", func(t *testing.T) {
		var got string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = w.Header().Get(RequestIDHeader)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if got == "" {
			t.Fatal("expected a generated request ID")
		}
	})

	t.Run("preserves an incoming ID", func(t *testing.T) {
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
			t.Fatalf("request ID = %q, want %q", got, "req-123")
		}
	})
}

func TestLogging(t *testing.T) {
	t.Run("logs method, path and status", func(t *testing.T) {
		var buf bytes.Buffer
		handler := Logging(testLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("ok"))
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/pending", nil))

		var record map[string]any
		if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
			t.Fatalf("parsing log record: %v", err)
		}
		if record["method"] != "GET" {
			t.Errorf("method = %v, want GET", record["method"])
		}
		if record["path"] != "/v1/pending" {
			t.Errorf("path = %v, want /v1/pending", record["path"])
		}
		if record["status"] != float64(http.StatusAccepted) {
			t.Errorf("status = %v, want %d", record["status"], http.StatusAccepted)
		}
	})

	t.Run("server errors log at error level", func(t *testing.T) {
		var buf bytes.Buffer
		handler := Logging(testLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/pending", nil))

		var record map[string]any
		if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
			t.Fatalf("parsing log record: %v", err)
		}
		if record["level"] != "ERROR" {
			t.Errorf("level = %v, want ERROR", record["level"])
		}
	})
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	handler := Recovery(testLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if !bytes.Contains(buf.Bytes(), []byte("panic recovered")) {
		t.Error("expected panic to be logged")
	}
}
