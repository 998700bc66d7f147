// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SavePoint is one parsed row of the snapshot trigger table.
type SavePoint struct {
	After   time.Duration
	Changes int
}

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	switch cfg.Server.Mode {
	case "eventloop", "threaded":
	default:
		return fmt.Errorf("server.mode must be \"eventloop\" or \"threaded\", got %q", cfg.Server.Mode)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", cfg.Server.Port)
	}

	if cfg.Storage.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}

	switch cfg.Storage.FsyncPolicy {
	case "always", "everysec", "no":
	default:
		return fmt.Errorf("storage.fsync_policy must be one of always, everysec, no; got %q", cfg.Storage.FsyncPolicy)
	}

	if cfg.Storage.AutoRewritePercentage < 0 {
		return errors.New("storage.auto_rewrite_percentage must not be negative")
	}
	if cfg.Storage.AutoRewriteMinSize < 0 {
		return errors.New("storage.auto_rewrite_min_size must not be negative")
	}

	if _, err := ParseSavePoints(cfg.Storage.SavePoints); err != nil {
		return err
	}

	return nil
}

// ParseSavePoints parses "<seconds> <changes>" rows into SavePoints.
func ParseSavePoints(rows []string) ([]SavePoint, error) {
	out := make([]SavePoint, 0, len(rows))
	for _, row := range rows {
		fields := strings.Fields(row)
		if len(fields) != 2 {
			return nil, fmt.Errorf("storage.save_points entry %q: want \"<seconds> <changes>\"", row)
		}
		secs, err := strconv.Atoi(fields[0])
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("storage.save_points entry %q: bad seconds", row)
		}
		changes, err := strconv.Atoi(fields[1])
		if err != nil || changes <= 0 {
			return nil, fmt.Errorf("storage.save_points entry %q: bad change count", row)
		}
		out = append(out, SavePoint{
			After:   time.Duration(secs) * time.Second,
			Changes: changes,
		})
	}
	return out, nil
}
