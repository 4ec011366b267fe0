package pagination

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"not base64!", "bm8tc2VwYXJhdG9y", EncodeCursor(Cursor{})[:4]} {
		if _, err := ParseCursor(raw); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("expected invalid cursor for %q, got %v", raw, err)
		}
	}
	if c, err := ParseCursor("  "); err != nil || c != nil {
		t.Fatalf("blank cursor should be nil, got %v %v", c, err)
	}
}

func TestParseLimit(t *testing.T) {
	cases := map[string]int{"": DefaultLimit, "5": 5, "1000": MaxLimit}
	for raw, want := range cases {
		got, err := ParseLimit(raw)
		if err != nil || got != want {
			t.Fatalf("ParseLimit(%q) = %d, %v; want %d", raw, got, err, want)
		}
	}
	if _, err := ParseLimit("-1"); err == nil {
		t.Fatalf("expected error for negative limit")
	}
}
