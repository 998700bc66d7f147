package confloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/keidaro/redstone/internal/server/config"
)

func TestLoadDefaultsOnly(t *testing.T) {
	cfg := config.Default()
	if err := NewLoader().Load(cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != config.DefaultPort {
		t.Fatalf("Port = %d, want default %d", cfg.Server.Port, config.DefaultPort)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	raw := "server:\n  port: 7000\nstorage:\n  fsync_policy: always\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := config.Default()
	if err := NewLoader(WithConfigFile(path)).Load(cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Fatalf("Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Storage.FsyncPolicy != "always" {
		t.Fatalf("FsyncPolicy = %q, want always", cfg.Storage.FsyncPolicy)
	}
	// Untouched values keep their defaults.
	if cfg.Storage.DataDir != config.DefaultDataDir {
		t.Fatalf("DataDir = %q, want default", cfg.Storage.DataDir)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("REDSTONE_SERVER_PORT", "7100")
	t.Setenv("REDSTONE_STORAGE_DATA_DIR", "/tmp/redstone-test")

	cfg := config.Default()
	if err := NewLoader(WithConfigFile(path)).Load(cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7100 {
		t.Fatalf("Port = %d, want env override 7100", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/tmp/redstone-test" {
		t.Fatalf("DataDir = %q, want env override", cfg.Storage.DataDir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg := config.Default()
	err := NewLoader(WithConfigFile("/nonexistent/server.yaml")).Load(cfg)
	if err == nil {
		t.Fatal("Load accepted a missing config file")
	}
}
