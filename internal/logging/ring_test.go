package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestRingEvictsOldest(t *testing.T) {
	t.Parallel()

	r := NewRing(3)
	if got := r.Lines(); len(got) != 0 {
		t.Fatalf("expected empty ring, got %v", got)
	}
	for _, l := range []string{"a", "b"} {
		r.Add(l)
	}
	if got := strings.Join(r.Lines(), ","); got != "a,b" {
		t.Fatalf("expected a,b got %s", got)
	}
	for _, l := range []string{"c", "d", "e"} {
		r.Add(l)
	}
	if got := strings.Join(r.Lines(), ","); got != "c,d,e" {
		t.Fatalf("expected c,d,e got %s", got)
	}
}

func TestNewRingDefaultSize(t *testing.T) {
	t.Parallel()

	r := NewRing(0)
	if len(r.lines) != 200 {
		t.Fatalf("expected default size 200, got %d", len(r.lines))
	}
}

func zapString(k, v string) zap.Field { return zap.String(k, v) }

func contains(s, sub string) bool { return strings.Contains(s, sub) }
