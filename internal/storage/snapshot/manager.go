package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// FileName is the canonical snapshot file name inside the data dir.
	FileName = "dump.json"

	tempSuffix = ".tmp"

	// FormatVersion is written into the metadata block.
	FormatVersion = "1.0"
)

// ErrNoSnapshot is returned by Load when no snapshot file exists.
var ErrNoSnapshot = errors.New("snapshot: no snapshot file")

// Manager writes and loads the snapshot file for one data directory.
type Manager struct {
	dir    string
	logger *slog.Logger
}

// NewManager creates a snapshot manager rooted at dir, creating the
// directory if needed.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	return &Manager{dir: dir, logger: logger}, nil
}

// Path returns the canonical snapshot path.
func (m *Manager) Path() string {
	return filepath.Join(m.dir, FileName)
}

// Write serializes items to the temp file and atomically renames it over
// the canonical name. Workers call this with a private copy of the
// keyspace; Write never touches shared state.
func (m *Manager) Write(items map[string]string) error {
	tempPath := m.Path() + tempSuffix

	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}

	if err := writeDump(file, items, time.Now().UTC()); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("snapshot: write: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("snapshot: close: %w", err)
	}

	if err := os.Rename(tempPath, m.Path()); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("snapshot: rename: %w", err)
	}

	m.logger.Info("snapshot saved", "path", m.Path(), "keys", len(items))
	return nil
}

func writeDump(file *os.File, items map[string]string, now time.Time) error {
	w := bufio.NewWriter(file)

	fmt.Fprintf(w, "{\n")
	fmt.Fprintf(w, "  \"metadata\": {\n")
	fmt.Fprintf(w, "    \"version\": %q,\n", FormatVersion)
	fmt.Fprintf(w, "    \"timestamp\": %q,\n", now.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(w, "    \"key_count\": %d\n", len(items))
	fmt.Fprintf(w, "  },\n")
	fmt.Fprintf(w, "  \"data\": {\n")

	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		if i > 0 {
			fmt.Fprintf(w, ",\n")
		}
		fmt.Fprintf(w, "    \"%s\": \"%s\"", k, items[k])
	}

	fmt.Fprintf(w, "\n  }\n")
	fmt.Fprintf(w, "}\n")

	return w.Flush()
}

// Load reads the snapshot file back into a map. It returns ErrNoSnapshot
// when the file does not exist.
//
// The parser mirrors the writer: it scans for the "data": line, then takes
// the first two double-quoted substrings of each subsequent line as key and
// value, stopping at the closing brace. Lines that do not fit the shape are
// skipped.
func (m *Manager) Load() (map[string]string, error) {
	file, err := os.Open(m.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	defer file.Close()

	items := make(map[string]string)
	inData := false

	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := sc.Text()

		if !inData {
			if strings.Contains(line, "\"data\":") {
				inData = true
			}
			continue
		}

		if strings.Contains(line, "}") && !strings.Contains(line, "\"") {
			break
		}

		key, value, ok := splitQuoted(line)
		if !ok {
			continue
		}
		items[key] = value
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: read: %w", err)
	}

	m.logger.Info("snapshot loaded", "path", m.Path(), "keys", len(items))
	return items, nil
}

// splitQuoted extracts the first two double-quoted substrings of a line.
func splitQuoted(line string) (key, value string, ok bool) {
	parts := strings.Split(line, "\"")
	// A well-formed pair line splits into at least five parts:
	// indent, key, separator, value, trailer.
	if len(parts) < 5 {
		return "", "", false
	}
	return parts[1], parts[3], true
}
