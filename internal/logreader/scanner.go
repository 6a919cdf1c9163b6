package logreader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPatterns match plain and archived speed-test logs
var DefaultPatterns = []string{"*.log", "*.log.gz", "*.log.zst", "*.txt"}

// LogFile represents a discovered speed-test log
type LogFile struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ScanForLogs recursively scans directories for speed-test log files
// Files are matched by base name against glob patterns (case-insensitive) and
// returned oldest first so re-runs ingest in the order the tests were written
func ScanForLogs(rootDirs []string, patterns []string) ([]LogFile, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	var files []LogFile

	for _, rootDir := range rootDirs {
		log.Debug().Str("root_dir", rootDir).Msg("Scanning for speed-test logs...")

		err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				// Skip inaccessible directories
				log.Warn().Err(err).Str("path", path).Msg("Skipping inaccessible path")
				return nil
			}

			if info.IsDir() || !info.Mode().IsRegular() {
				return nil
			}

			matched, err := matchesAny(info.Name(), patterns)
			if err != nil {
				return err
			}
			if matched {
				files = append(files, LogFile{
					Path:    path,
					Size:    info.Size(),
					ModTime: info.ModTime(),
				})
			}

			return nil
		})

		if err != nil {
			return nil, fmt.Errorf("failed to walk directory %s: %w", rootDir, err)
		}
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.Before(files[j].ModTime)
		}
		return files[i].Path < files[j].Path
	})

	log.Debug().Int("total_files", len(files)).Msg("Log scan complete")
	return files, nil
}

func matchesAny(name string, patterns []string) (bool, error) {
	lower := strings.ToLower(name)
	for _, pattern := range patterns {
		ok, err := filepath.Match(strings.ToLower(pattern), lower)
		if err != nil {
			return false, fmt.Errorf("invalid log pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
