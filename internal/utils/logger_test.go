package utils

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestComponentLoggerTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	logger := ComponentLogger(base, "vision-service")
	logger.Info("request complete")

	out := buf.String()
	if !strings.Contains(out, `"component":"vision-service"`) {
		t.Fatalf("expected component attribute in output, got %q", out)
	}
}

func TestComponentLoggerNilFallsBack(t *testing.T) {
	if logger := ComponentLogger(nil, "search-service"); logger == nil {
		t.Fatal("expected a usable logger for a nil base")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	ctx := context.Background()

	debug := NewLogger("debug", false)
	if !debug.Enabled(ctx, slog.LevelDebug) {
		t.Fatal("expected debug level enabled")
	}

	warn := NewLogger("warn", true)
	if warn.Enabled(ctx, slog.LevelInfo) {
		t.Fatal("expected info suppressed at warn level")
	}
}
