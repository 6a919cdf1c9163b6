package speedlog

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

const maxLineSize = 1024 * 1024

// Cursor yields lines in order with one line of lookahead
type Cursor interface {
	// Next returns the next line and advances past it
	// ok is false when input is exhausted
	Next() (line string, ok bool)

	// Peek returns the next line without consuming it
	Peek() (line string, ok bool)

	// Err returns the first read error, if any
	Err() error
}

// SliceCursor walks an in-memory slice of lines
type SliceCursor struct {
	lines []string
	pos   int
}

// NewSliceCursor creates a cursor over already split lines
func NewSliceCursor(lines []string) *SliceCursor {
	return &SliceCursor{lines: lines}
}

// Next returns the next line
func (c *SliceCursor) Next() (string, bool) {
	if c.pos >= len(c.lines) {
		return "", false
	}
	line := c.lines[c.pos]
	c.pos++
	return line, true
}

// Peek returns the next line without consuming it
func (c *SliceCursor) Peek() (string, bool) {
	if c.pos >= len(c.lines) {
		return "", false
	}
	return c.lines[c.pos], true
}

// Err always returns nil
func (c *SliceCursor) Err() error {
	return nil
}

// ScannerCursor reads lines incrementally from an io.Reader
// LF and CRLF line endings are treated identically. Lines longer than
// maxLineSize are cut to that length and the rest of the line is discarded
type ScannerCursor struct {
	reader    *bufio.Reader
	first     bool
	err       error
	truncated uint64

	peeked   bool
	peekLine string
	peekOK   bool
}

// NewScannerCursor creates a cursor over r
func NewScannerCursor(r io.Reader) *ScannerCursor {
	return &ScannerCursor{reader: bufio.NewReaderSize(r, 64*1024), first: true}
}

// Next returns the next line
func (c *ScannerCursor) Next() (string, bool) {
	if c.peeked {
		c.peeked = false
		return c.peekLine, c.peekOK
	}
	return c.scan()
}

// Peek returns the next line without consuming it
func (c *ScannerCursor) Peek() (string, bool) {
	if !c.peeked {
		c.peekLine, c.peekOK = c.scan()
		c.peeked = true
	}
	return c.peekLine, c.peekOK
}

// Err returns the first read error; io.EOF is not an error
func (c *ScannerCursor) Err() error {
	return c.err
}

// Truncated returns how many lines were cut to maxLineSize
func (c *ScannerCursor) Truncated() uint64 {
	return c.truncated
}

func (c *ScannerCursor) scan() (string, bool) {
	if c.err != nil {
		return "", false
	}

	var (
		line    []byte
		started bool
		dropped bool
	)
	for {
		chunk, isPrefix, err := c.reader.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.err = err
			}
			if !started {
				return "", false
			}
			break
		}
		started = true

		// chunk is only valid until the next read, append copies it
		if room := maxLineSize - len(line); len(chunk) > room {
			line = append(line, chunk[:room]...)
			dropped = true
		} else {
			line = append(line, chunk...)
		}

		if !isPrefix {
			break
		}
	}

	if dropped {
		c.truncated++
		log.Debug().Int("max_line_size", maxLineSize).Msg("Line too long, truncated")
	}

	text := string(line)
	if c.first {
		// Logs saved by Windows editors often start with a UTF-8 BOM
		text = strings.TrimPrefix(text, "\ufeff")
		c.first = false
	}
	return text, true
}
