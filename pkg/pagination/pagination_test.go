package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	t.Parallel()

	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("NormalizeLimit(0) = %d, want %d", got, DefaultLimit)
	}
	if got := NormalizeLimit(-5); got != DefaultLimit {
		t.Fatalf("NormalizeLimit(-5) = %d, want %d", got, DefaultLimit)
	}
	if got := NormalizeLimit(40); got != 40 {
		t.Fatalf("NormalizeLimit(40) = %d, want 40", got)
	}
	if got := NormalizeLimit(MaxLimit + 1); got != MaxLimit {
		t.Fatalf("NormalizeLimit(%d) = %d, want %d", MaxLimit+1, got, MaxLimit)
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("LimitWithBuffer(10) = %d, want 11", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()

	cursor := Cursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC),
		ID:        uuid.New(),
	}
	parsed, err := ParseCursor(EncodeCursor(cursor))
	if err != nil {
		t.Fatalf("ParseCursor failed: %v", err)
	}
	if parsed == nil {
		t.Fatal("expected a cursor")
	}
	if !parsed.CreatedAt.Equal(cursor.CreatedAt) {
		t.Fatalf("created_at mismatch: got %s, want %s", parsed.CreatedAt, cursor.CreatedAt)
	}
	if parsed.ID != cursor.ID {
		t.Fatalf("id mismatch: got %s, want %s", parsed.ID, cursor.ID)
	}
}

func TestParseCursorEmpty(t *testing.T) {
	t.Parallel()

	parsed, err := ParseCursor("")
	if err != nil || parsed != nil {
		t.Fatalf("empty cursor should parse to nil, got %v / %v", parsed, err)
	}
	parsed, err = ParseCursor("   ")
	if err != nil || parsed != nil {
		t.Fatalf("blank cursor should parse to nil, got %v / %v", parsed, err)
	}
}

func TestParseCursorInvalid(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"not base64!!", "bm8tcGlwZQ==", "aW52YWxpZHxub3QtYS11dWlk"} {
		if _, err := ParseCursor(value); err == nil {
			t.Fatalf("ParseCursor(%q) should fail", value)
		}
	}
}
