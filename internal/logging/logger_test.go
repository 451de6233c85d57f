package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"calldesk/internal/services"
)

func TestConsoleHandlerFormatsAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := newConsoleHandler(&buf, slog.LevelInfo)
	logger := slog.New(handler)

	logger.Info("call queued", CallID(42), slog.String("audio", "a.wav"))

	line := buf.String()
	if !strings.Contains(line, "INFO call queued") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "call_id=42") || !strings.Contains(line, "audio=a.wav") {
		t.Fatalf("missing attrs in line: %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := newConsoleHandler(&buf, slog.LevelWarn)
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestConsoleHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelInfo)).WithGroup("match")
	logger.Info("resolved", slog.String("by", "phone"))
	if !strings.Contains(buf.String(), "match.by=phone") {
		t.Fatalf("group prefix missing: %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestErrorAttrNil(t *testing.T) {
	if attr := Error(nil); !attr.Equal(slog.Attr{}) {
		t.Fatalf("Error(nil) = %v, want empty attr", attr)
	}
}

func TestWithContextAddsAnnotations(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelInfo))

	ctx := context.Background()
	ctx = services.WithCallID(ctx, 7)
	ctx = services.WithStage(ctx, "extract")
	ctx = services.WithRequestID(ctx, "req-abc")

	WithContext(ctx, logger).Info("stage started")

	line := buf.String()
	for _, want := range []string{"call_id=7", "stage=extract", "request_id=req-abc"} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in line: %q", want, line)
		}
	}
}

func TestWithContextBareContextReturnsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelInfo))
	if got := WithContext(context.Background(), logger); got != logger {
		t.Fatal("expected same logger when context carries no annotations")
	}
}
