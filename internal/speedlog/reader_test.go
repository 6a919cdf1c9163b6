package speedlog

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/netspeed/speedlog/internal/domain"
)

const sampleLog = "==========Beginning test to East Database==========\n" +
	"Mon, Jan 1 2024 10:00:00 AM\n" +
	"Seconds to Post File: 1.5s\n" +
	"Seconds to Download File: 2.0s\n"

func writeFile(t *testing.T, path string, write func(w io.Writer) error) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer file.Close()
	if err := write(file); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func writeGzip(w io.Writer) error {
	gz := gzip.NewWriter(w)
	if _, err := gz.Write([]byte(sampleLog)); err != nil {
		return err
	}
	return gz.Close()
}

func writeZstd(w io.Writer) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if _, err := enc.Write([]byte(sampleLog)); err != nil {
		return err
	}
	return enc.Close()
}

func writePlain(w io.Writer) error {
	_, err := io.WriteString(w, sampleLog)
	return err
}

func TestOpenLog(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		file  string
		write func(w io.Writer) error
	}{
		{name: "plain", file: "speed.log", write: writePlain},
		{name: "gzip by extension", file: "speed.log.gz", write: writeGzip},
		{name: "zstd by extension", file: "speed.log.zst", write: writeZstd},
		{name: "gzip by magic bytes", file: "speed-gz.log", write: writeGzip},
		{name: "zstd by magic bytes", file: "speed-zst.log", write: writeZstd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.write)

			rc, err := OpenLog(path)
			if err != nil {
				t.Fatalf("OpenLog() error = %v", err)
			}
			defer rc.Close()

			var records []domain.SpeedRecord
			_, err = NewExtractor().ExtractReader(context.Background(), rc, func(r domain.SpeedRecord) error {
				records = append(records, r)
				return nil
			})
			if err != nil {
				t.Fatalf("ExtractReader() error = %v", err)
			}
			if len(records) != 1 {
				t.Fatalf("expected 1 record, got %d", len(records))
			}
			assertMetric(t, "DownloadTimeSeconds", records[0].DownloadTimeSeconds, f(2.0))
		})
	}
}

func TestOpenLog_Missing(t *testing.T) {
	if _, err := OpenLog(filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDetectCompression(t *testing.T) {
	tests := []struct {
		path string
		head string
		want Compression
	}{
		{path: "a.log", head: "plain text", want: CompressionNone},
		{path: "a.LOG.GZ", head: "", want: CompressionGzip},
		{path: "a.zst", head: "", want: CompressionZstd},
		{path: "a.log", head: "\x1f\x8b\x08", want: CompressionGzip},
		{path: "a.log", head: "\x28\xb5\x2f\xfd", want: CompressionZstd},
		{path: "a.log", head: "x", want: CompressionNone},
	}

	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.want.String(), func(t *testing.T) {
			got := DetectCompression(tt.path, bufio.NewReader(strings.NewReader(tt.head)))
			if got != tt.want {
				t.Errorf("DetectCompression() = %s, want %s", got, tt.want)
			}
		})
	}
}
