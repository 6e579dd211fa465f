// Package logging includes tests for the zap logger helpers.
package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

func TestLoggerTeesIntoRing(t *testing.T) {
	t.Parallel()

	ring := NewRing(10)
	logger, err := New(false, WithRing(ring), WithLevel(zapcore.WarnLevel))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("dropped by level")
	logger.Named("scheduler").With(zapString("job_id", "7")).Warn("tick error")

	lines := ring.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 ring line, got %d: %v", len(lines), lines)
	}
	for _, want := range []string{`"msg":"tick error"`, `"job_id":"7"`, `"logger":"scheduler"`, `"level":"warn"`} {
		if !contains(lines[0], want) {
			t.Fatalf("expected %q in %s", want, lines[0])
		}
	}
}
