package speedlog

import (
	"errors"
	"io"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk error")
}

func drain(c Cursor) []string {
	var lines []string
	for {
		line, ok := c.Next()
		if !ok {
			return lines
		}
		lines = append(lines, line)
	}
}

func TestCursors_PeekDoesNotConsume(t *testing.T) {
	cursors := map[string]func() Cursor{
		"slice": func() Cursor {
			return NewSliceCursor([]string{"a", "b", "c"})
		},
		"scanner": func() Cursor {
			return NewScannerCursor(strings.NewReader("a\nb\r\nc"))
		},
	}

	for name, newCursor := range cursors {
		t.Run(name, func(t *testing.T) {
			c := newCursor()

			if line, ok := c.Next(); !ok || line != "a" {
				t.Fatalf("expected a, got %q (ok=%v)", line, ok)
			}
			for i := 0; i < 2; i++ {
				if line, ok := c.Peek(); !ok || line != "b" {
					t.Fatalf("peek %d: expected b, got %q (ok=%v)", i, line, ok)
				}
			}

			rest := drain(c)
			if strings.Join(rest, ",") != "b,c" {
				t.Errorf("expected remaining b,c, got %v", rest)
			}

			if _, ok := c.Peek(); ok {
				t.Errorf("expected peek at end to report false")
			}
			if _, ok := c.Next(); ok {
				t.Errorf("expected next at end to report false")
			}
			if err := c.Err(); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestScannerCursor_StripsBOM(t *testing.T) {
	c := NewScannerCursor(strings.NewReader("\ufeffhello\n\ufeffworld\n"))
	lines := drain(c)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "hello" {
		t.Errorf("expected BOM stripped from first line, got %q", lines[0])
	}
	if lines[1] != "\ufeffworld" {
		t.Errorf("expected later lines untouched, got %q", lines[1])
	}
}

func TestScannerCursor_ReadError(t *testing.T) {
	c := NewScannerCursor(io.MultiReader(strings.NewReader("first\n"), failingReader{}))
	lines := drain(c)
	if len(lines) != 1 || lines[0] != "first" {
		t.Errorf("expected [first], got %v", lines)
	}
	if c.Err() == nil {
		t.Errorf("expected read error to surface")
	}
}

func TestScannerCursor_TruncatesOversizedLine(t *testing.T) {
	long := strings.Repeat("y", maxLineSize+10)
	c := NewScannerCursor(strings.NewReader("before\n" + long + "\r\nafter"))

	lines := drain(c)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if len(lines[1]) != maxLineSize {
		t.Errorf("expected line cut to %d bytes, got %d", maxLineSize, len(lines[1]))
	}
	if lines[0] != "before" || lines[2] != "after" {
		t.Errorf("expected neighbours intact, got %q and %q", lines[0], lines[2])
	}
	if c.Truncated() != 1 {
		t.Errorf("expected 1 truncated line, got %d", c.Truncated())
	}
	if err := c.Err(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
