package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	var reached bool
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		method      string
		wantStatus  int
		wantReached bool
	}{
		{http.MethodGet, http.StatusOK, true},
		{http.MethodPost, http.StatusOK, true},
		{http.MethodOptions, http.StatusNoContent, false},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(tt.method, "/api/correct", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", w.Code, tt.wantStatus)
			}
			if reached != tt.wantReached {
				t.Errorf("inner reached = %v, want %v", reached, tt.wantReached)
			}
			for header, want := range map[string]string{
				"Access-Control-Allow-Origin":   "*",
				"Access-Control-Allow-Methods":  "GET, POST, OPTIONS",
				"Access-Control-Allow-Headers":  "Content-Type, X-API-Key",
				"Access-Control-Expose-Headers": "X-Request-ID",
			} {
				if got := w.Header().Get(header); got != want {
					t.Errorf("%s: got %q, want %q", header, got, want)
				}
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var ctxID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = RequestIDFromContext(r.Context())
	}))

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		id := w.Header().Get("X-Request-ID")
		if len(id) != 32 || strings.Contains(id, "-") {
			t.Errorf("X-Request-ID %q: want 32 hex characters", id)
		}
		if ctxID != id {
			t.Errorf("context ID %q != header ID %q", ctxID, id)
		}
		if seen[id] {
			t.Errorf("duplicate request ID %q", id)
		}
		seen[id] = true
	}
	if got := RequestIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()); got != "" {
		t.Errorf("RequestIDFromContext without middleware = %q, want empty", got)
	}
}

// captureLog points the default logger at a JSON buffer for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLogging(t *testing.T) {
	routes := NewRoutes("/api/correct")
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		w.Write(append(data, '!'))
	})

	tests := []struct {
		name     string
		path     string
		body     string
		route    string
		bytesOut float64
	}{
		{"registered route", "/api/correct", `{"text":"he go"}`, "/api/correct", 17},
		{"unregistered path", "/admin/login", "", OtherRoute, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			var body io.Reader = http.NoBody
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			w := httptest.NewRecorder()
			RequestID(Logging(routes)(echo)).ServeHTTP(w, httptest.NewRequest(http.MethodPost, tt.path, body))

			if w.Code != http.StatusCreated {
				t.Errorf("status: got %d, want %d", w.Code, http.StatusCreated)
			}
			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("log line %q: %v", buf.String(), err)
			}
			want := map[string]any{
				"msg":        "request",
				"method":     http.MethodPost,
				"path":       tt.path,
				"route":      tt.route,
				"status":     float64(http.StatusCreated),
				"bytes_in":   float64(len(tt.body)),
				"bytes_out":  tt.bytesOut,
				"request_id": w.Header().Get("X-Request-ID"),
			}
			for k, v := range want {
				if entry[k] != v {
					t.Errorf("%s: got %v, want %v", k, entry[k], v)
				}
			}
			if _, ok := entry["duration_ms"]; !ok {
				t.Error("duration_ms missing")
			}
		})
	}
}

func TestLoggingWithoutRequestID(t *testing.T) {
	buf := captureLog(t)
	Logging(nil)(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "-" || entry["status"] != float64(http.StatusNotFound) {
		t.Errorf("entry = %v", entry)
	}
}

func TestStatusWriter(t *testing.T) {
	w := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	sw.WriteHeader(http.StatusNotFound)
	sw.Write([]byte("not "))
	sw.Write([]byte("found"))

	if sw.status != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", sw.status, http.StatusNotFound)
	}
	if sw.bytes != 9 || w.Body.String() != "not found" {
		t.Errorf("bytes = %d, body = %q", sw.bytes, w.Body.String())
	}
}

func TestMaxBytes(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			var maxErr *http.MaxBytesError
			if !errors.As(err, &maxErr) {
				t.Errorf("err = %v, want *http.MaxBytesError", err)
			}
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name string
		size int
		want int
	}{
		{"under limit", 9, http.StatusOK},
		{"at limit", 10, http.StatusOK},
		{"over limit", 11, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/score", strings.NewReader(strings.Repeat("x", tt.size)))
			w := httptest.NewRecorder()
			MaxBytes(10)(inner).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}
