package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"gofinances/internal/middleware/trace"
)

func newJSONLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Component: ComponentHTTP, Format: "json", Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestLogger_ComponentAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, slog.LevelInfo)

	ctx := trace.WithRequestID(context.Background(), "req_1")
	logger.InfoContext(ctx, "hello", "k", "v")
	logger.WithComponent(ComponentAMQP).Info("no request")
	logger.Debug("filtered")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0][FieldComponent] != ComponentHTTP || lines[0][FieldRequestID] != "req_1" || lines[0]["k"] != "v" {
		t.Errorf("unexpected first line %v", lines[0])
	}
	if lines[1][FieldComponent] != ComponentAMQP {
		t.Errorf("component not rebound: %v", lines[1])
	}
	if _, ok := lines[1][FieldRequestID]; ok {
		t.Errorf("request id without context: %v", lines[1])
	}
}

func TestMiddleware_FromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, slog.LevelInfo)

	var got *Logger
	h := Middleware(logger)(ComponentMiddleware(ComponentLedger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got == nil || got.Component() != ComponentLedger {
		t.Fatalf("expected ledger logger, got %+v", got)
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("fallback logger should be marked unknown")
	}
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf, slog.LevelInfo))
	ctx := context.Background()

	sl.LogError(ctx, "rejected", errors.New("bad"), ErrorTypeValidation, OpCreate, nil)
	sl.LogError(ctx, "failed", errors.New("disk"), ErrorTypeDatabase, OpImport, NewFields().WithFile("a.csv"))
	sl.LogImport(ctx, "req_1", "a.csv", 3, false)

	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0]["level"] != "WARN" || lines[0][FieldErrorType] != ErrorTypeValidation {
		t.Errorf("validation error should log at warn: %v", lines[0])
	}
	if lines[1]["level"] != "ERROR" || lines[1][FieldFile] != "a.csv" || lines[1][FieldError] != "disk" {
		t.Errorf("unexpected error line %v", lines[1])
	}
	if lines[2][FieldComponent] != ComponentImport || lines[2][FieldCount] != float64(3) {
		t.Errorf("unexpected import line %v", lines[2])
	}
}
