package speedlog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Compression identifies how a log file is stored on disk
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// readCloser closes the decoder and the underlying file together
type readCloser struct {
	io.Reader
	closeFn func() error
}

func (r *readCloser) Close() error {
	return r.closeFn()
}

// OpenLog opens a speed-test log for reading
// Archived logs (.gz, .zst) are decompressed transparently; files without a
// known extension are sniffed by their magic bytes
func OpenLog(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	br := bufio.NewReader(file)
	compression := DetectCompression(path, br)

	switch compression {
	case CompressionGzip:
		gzReader, err := gzip.NewReader(br)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return &readCloser{
			Reader: gzReader,
			closeFn: func() error {
				gzReader.Close()
				return file.Close()
			},
		}, nil

	case CompressionZstd:
		decoder, err := zstd.NewReader(br)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return &readCloser{
			Reader: decoder,
			closeFn: func() error {
				decoder.Close()
				return file.Close()
			},
		}, nil
	}

	return &readCloser{Reader: br, closeFn: file.Close}, nil
}

// DetectCompression decides the compression from the file extension, falling back to magic bytes
func DetectCompression(path string, br *bufio.Reader) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	}

	if br == nil {
		return CompressionNone
	}

	// Peek returns fewer bytes with an error on short files; that is fine here
	head, _ := br.Peek(len(zstdMagic))
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	}
	return CompressionNone
}

func (c Compression) String() string {
	return string(c)
}
