// Package config defines the server configuration structure.
package config

// Default configuration values.
const (
	DefaultMode = "eventloop"
	DefaultPort = 6379

	DefaultDataDir     = "data"
	DefaultFsyncPolicy = "everysec"

	DefaultAutoRewritePercentage = 100
	DefaultAutoRewriteMinSize    = 64 << 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// DefaultSavePoints is the standard snapshot trigger table. The 15-minute
// row requires more than one accumulated change.
var DefaultSavePoints = []string{"900 2", "300 10", "60 10000"}

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Mode: DefaultMode,
			Port: DefaultPort,
		},
		Storage: StorageSection{
			DataDir:               DefaultDataDir,
			AOFEnabled:            true,
			FsyncPolicy:           DefaultFsyncPolicy,
			AutoRewritePercentage: DefaultAutoRewritePercentage,
			AutoRewriteMinSize:    DefaultAutoRewriteMinSize,
			SavePoints:            DefaultSavePoints,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
