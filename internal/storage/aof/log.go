package aof

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	// FileName is the canonical log file name inside the data dir.
	FileName = "appendonly.aof"

	tempSuffix = ".tmp"

	// rewriteCheckEvery is the number of appends between consultations of
	// the auto-rewrite predicate.
	rewriteCheckEvery = 100

	// DefaultAutoRewritePercentage triggers a rewrite when the log has
	// grown by this percentage over the post-rewrite baseline.
	DefaultAutoRewritePercentage = 100

	// DefaultAutoRewriteMinSize is the minimum log size before the
	// auto-rewrite predicate can fire.
	DefaultAutoRewriteMinSize = 64 << 20

	// syncInterval is the flush cadence under PolicyEverySec.
	syncInterval = time.Second
)

// Policy selects when appended commands are pushed to the OS.
type Policy string

const (
	// PolicyAlways flushes on every append.
	PolicyAlways Policy = "always"
	// PolicyEverySec flushes at most once per second, on the owner's
	// cadence check. Up to one second of acknowledged commands may be
	// lost on a crash.
	PolicyEverySec Policy = "everysec"
	// PolicyNo never flushes explicitly and relies on the OS.
	PolicyNo Policy = "no"
)

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyAlways, PolicyEverySec, PolicyNo:
		return Policy(s), nil
	case "":
		return PolicyEverySec, nil
	}
	return "", fmt.Errorf("aof: unknown fsync policy %q", s)
}

// Config configures the append-only log.
type Config struct {
	// Dir is the data directory holding the log file.
	Dir string

	// Policy is the fsync policy.
	Policy Policy

	// AutoRewritePercentage and AutoRewriteMinSize parameterize the
	// auto-rewrite predicate. Zero values take the defaults.
	AutoRewritePercentage int64
	AutoRewriteMinSize    int64

	Logger *slog.Logger
}

// Log is the open append-only file. It is owned by a single goroutine;
// none of its methods are safe for concurrent use.
type Log struct {
	cfg    Config
	path   string
	file   *os.File
	buf    *bufio.Writer
	logger *slog.Logger

	appendCount     int
	lastRewriteSize int64
	lastSync        time.Time
}

// Path returns the canonical log path for a data directory.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Open opens or creates the log in append mode.
func Open(cfg Config) (*Log, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("aof: dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyEverySec
	}
	if cfg.AutoRewritePercentage == 0 {
		cfg.AutoRewritePercentage = DefaultAutoRewritePercentage
	}
	if cfg.AutoRewriteMinSize == 0 {
		cfg.AutoRewriteMinSize = DefaultAutoRewriteMinSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("aof: create dir: %w", err)
	}

	path := Path(cfg.Dir)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("aof: open: %w", err)
	}

	return &Log{
		cfg:      cfg,
		path:     path,
		file:     file,
		buf:      bufio.NewWriter(file),
		logger:   cfg.Logger,
		lastSync: time.Now(),
	}, nil
}

// Append writes one raw command line to the log. Under PolicyAlways the
// write is pushed to disk immediately.
//
// Every rewriteCheckEvery appends the auto-rewrite predicate is consulted;
// rewrite reports true when the owner should start a background rewrite.
func (l *Log) Append(line string) (rewrite bool, err error) {
	if _, err := l.buf.WriteString(line); err != nil {
		return false, fmt.Errorf("aof: append: %w", err)
	}
	if err := l.buf.WriteByte('\n'); err != nil {
		return false, fmt.Errorf("aof: append: %w", err)
	}

	if l.cfg.Policy == PolicyAlways {
		if err := l.Sync(); err != nil {
			return false, err
		}
	}

	l.appendCount++
	if l.appendCount%rewriteCheckEvery == 0 {
		return l.ShouldAutoRewrite(), nil
	}
	return false, nil
}

// Flush pushes the process-level buffer to the kernel.
func (l *Log) Flush() error {
	return l.buf.Flush()
}

// Sync flushes and commits the log to disk.
func (l *Log) Sync() error {
	if err := l.buf.Flush(); err != nil {
		return fmt.Errorf("aof: flush: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("aof: fsync: %w", err)
	}
	l.lastSync = time.Now()
	return nil
}

// MaybeSync runs the fsync cadence check. Under PolicyEverySec it syncs
// when at least a second has passed since the last sync; the other
// policies do nothing here. It reports whether a sync happened.
func (l *Log) MaybeSync(now time.Time) (bool, error) {
	if l.cfg.Policy != PolicyEverySec {
		return false, nil
	}
	if now.Sub(l.lastSync) < syncInterval {
		return false, nil
	}
	if err := l.Sync(); err != nil {
		return false, err
	}
	return true, nil
}

// Size returns the current on-disk size of the log, flushing buffered
// appends first so the figure is accurate.
func (l *Log) Size() (int64, error) {
	if err := l.buf.Flush(); err != nil {
		return 0, fmt.Errorf("aof: flush: %w", err)
	}
	stat, err := l.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("aof: stat: %w", err)
	}
	return stat.Size(), nil
}

// ShouldAutoRewrite evaluates the auto-rewrite predicate.
//
// With S the current size and B the post-rewrite baseline: the first call
// with B == 0 installs S as the baseline and returns false. Afterwards a
// rewrite is due when S has reached the minimum size and has grown over B
// by at least the configured percentage.
func (l *Log) ShouldAutoRewrite() bool {
	size, err := l.Size()
	if err != nil {
		l.logger.Warn("aof size check failed", "error", err)
		return false
	}

	if l.lastRewriteSize == 0 {
		l.lastRewriteSize = size
		return false
	}
	if size < l.cfg.AutoRewriteMinSize {
		return false
	}

	growth := (size - l.lastRewriteSize) * 100 / l.lastRewriteSize
	return growth >= l.cfg.AutoRewritePercentage
}

// TempPath returns the temp file path used by rewrites.
func (l *Log) TempPath() string {
	return l.path + tempSuffix
}

// CompleteRewrite finishes a successful background rewrite: the tail
// (commands captured while the rewrite worker ran) is appended to the temp
// file, the temp file atomically replaces the live log, the log is
// reopened for append, and the baseline size is reset.
func (l *Log) CompleteRewrite(tempPath string, tail []string) error {
	if err := appendTail(tempPath, tail); err != nil {
		os.Remove(tempPath)
		return err
	}

	// Swap the freshly written log in under the canonical name.
	_ = l.buf.Flush()
	_ = l.file.Close()

	if err := os.Rename(tempPath, l.path); err != nil {
		os.Remove(tempPath)
		// Reopen the old log so appends can continue.
		if reopenErr := l.reopen(); reopenErr != nil {
			return fmt.Errorf("aof: rename failed (%v) and reopen failed: %w", err, reopenErr)
		}
		return fmt.Errorf("aof: rename: %w", err)
	}

	if err := l.reopen(); err != nil {
		return err
	}

	size, err := l.Size()
	if err != nil {
		return err
	}
	l.lastRewriteSize = size

	l.logger.Info("aof rewrite complete", "path", l.path, "size", size, "tail_commands", len(tail))
	return nil
}

func (l *Log) reopen() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("aof: reopen: %w", err)
	}
	l.file = file
	l.buf = bufio.NewWriter(file)
	return nil
}

func appendTail(path string, tail []string) error {
	if len(tail) == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("aof: open temp for tail: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, line := range tail {
		if _, err := w.WriteString(line); err != nil {
			f.Close()
			return fmt.Errorf("aof: append tail: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return fmt.Errorf("aof: append tail: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("aof: flush tail: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("aof: sync tail: %w", err)
	}
	return f.Close()
}

// Close flushes pending appends and closes the file.
func (l *Log) Close() error {
	if err := l.buf.Flush(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("aof: flush: %w", err)
	}
	return l.file.Close()
}
