package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

// Basic logging smoke test (slog-backed).
func TestLoggerBasic(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	log := Get()
	ctx := context.Background()
	log.Info(ctx, "test message", String("k", "v"))
	log.Warn(ctx, "warn message", Int("n", 1), Bool("flag", true))
	log.Debug(ctx, "debug message", Int64("big", 42))

	named := log.Named("stream")
	if named == nil {
		t.Fatal("named logger is nil")
	}
	named.Info(ctx, "named message")
}

func TestSetLevelString(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	cases := map[string]bool{
		"debug":   true,
		"info":    true,
		"":        true,
		"warn":    true,
		"warning": true,
		"error":   true,
		"verbose": false,
	}
	for input, ok := range cases {
		err := SetLevelString(input)
		if ok && err != nil {
			t.Errorf("SetLevelString(%q) returned unexpected error: %v", input, err)
		}
		if !ok && err == nil {
			t.Errorf("SetLevelString(%q) expected error, got nil", input)
		}
	}

	// Reset for other tests.
	SetLevel(slog.LevelInfo)
}
