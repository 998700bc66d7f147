// Package config defines the server configuration structure.
package config

// ServerConfig is the root configuration for redstone-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Storage StorageSection `koanf:"storage"`
	Metrics MetricsSection `koanf:"metrics"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures the network server.
type ServerSection struct {
	// Mode selects the server implementation: "eventloop" (default) or
	// "threaded".
	Mode string `koanf:"mode"`

	// Host is the listen host; empty binds all interfaces.
	Host string `koanf:"host"`

	// Port is the TCP listen port.
	Port int `koanf:"port"`

	// RateLimit is the per-IP commands-per-second limit in threaded mode.
	// Zero disables limiting.
	RateLimit int `koanf:"rate_limit"`
}

// StorageSection configures persistence.
type StorageSection struct {
	// DataDir holds dump.json and appendonly.aof.
	DataDir string `koanf:"data_dir"`

	// AOFEnabled turns the append-only log on.
	AOFEnabled bool `koanf:"aof_enabled"`

	// FsyncPolicy is one of "always", "everysec", "no".
	FsyncPolicy string `koanf:"fsync_policy"`

	// AutoRewritePercentage triggers an AOF rewrite once the log has grown
	// by this percentage over the post-rewrite baseline.
	AutoRewritePercentage int64 `koanf:"auto_rewrite_percentage"`

	// AutoRewriteMinSize is the minimum AOF size before auto-rewrite fires.
	AutoRewriteMinSize int64 `koanf:"auto_rewrite_min_size"`

	// SavePoints is the snapshot trigger table, each entry as
	// "<seconds> <changes>".
	SavePoints []string `koanf:"save_points"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	// Addr is the /metrics listen address; empty disables the endpoint.
	Addr string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
