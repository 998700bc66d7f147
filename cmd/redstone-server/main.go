// Package main provides the entry point for redstone-server.
//
// redstone-server is an in-memory key/value server speaking a line-oriented
// subset of the Redis protocol, with snapshot and append-only-file
// persistence.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/keidaro/redstone/internal/infra/buildinfo"
	"github.com/keidaro/redstone/internal/infra/confloader"
	"github.com/keidaro/redstone/internal/infra/shutdown"
	"github.com/keidaro/redstone/internal/server"
	"github.com/keidaro/redstone/internal/server/config"
	"github.com/keidaro/redstone/internal/storage/aof"
	"github.com/keidaro/redstone/internal/telemetry/logger"
	"github.com/keidaro/redstone/internal/telemetry/metric"
)

// PortEnvVar names the environment variable the listen port can be read
// from, kept so existing deployments work unchanged.
const PortEnvVar = "REDIS_CLONE_PORT"

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, "unknown fatal error:", r)
			os.Exit(2)
		}
	}()

	app := &cli.App{
		Name:      "redstone-server",
		Usage:     "in-memory key/value server with snapshot and AOF persistence",
		ArgsUsage: "[port]",
		Version:   buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Usage: "server mode: eventloop or threaded",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "TCP listen port",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to YAML configuration file",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	log.Info("starting redstone-server",
		"version", buildinfo.Version,
		"mode", cfg.Server.Mode,
		"port", cfg.Server.Port,
		"pid", os.Getpid())

	sh := shutdown.NewHandler(10 * time.Second)

	// Reload the log level when the config file changes.
	if path := c.String("config"); path != "" {
		watcher, err := confloader.NewWatcher(path, log)
		if err != nil {
			log.Warn("config watcher unavailable", "error", err)
		} else {
			watcher.OnChange(func(p string) {
				fresh := config.Default()
				if err := confloader.NewLoader(confloader.WithConfigFile(p)).Load(fresh); err != nil {
					log.Warn("config reload failed", "error", err)
					return
				}
				if fresh.Log.Level != logger.GetLevel() {
					log.Info("log level changed", "level", fresh.Log.Level)
					logger.SetLevel(fresh.Log.Level)
				}
			})
			sh.OnShutdown(func(context.Context) error { return watcher.Close() })
		}
	}

	metrics := metric.NewRegistry()
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		msrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			log.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr)
			if err := msrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics endpoint error", "error", err)
			}
		}()
		sh.OnShutdown(func(ctx context.Context) error { return msrv.Shutdown(ctx) })
	}

	go func() { _ = sh.Wait() }()

	savePoints, err := config.ParseSavePoints(cfg.Storage.SavePoints)
	if err != nil {
		return err
	}
	points := make([]server.SavePoint, 0, len(savePoints))
	for _, sp := range savePoints {
		points = append(points, server.SavePoint{After: sp.After, Changes: sp.Changes})
	}

	srvCfg := server.Config{
		Addr:                  net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		DataDir:               cfg.Storage.DataDir,
		AOFEnabled:            cfg.Storage.AOFEnabled,
		FsyncPolicy:           aof.Policy(cfg.Storage.FsyncPolicy),
		AutoRewritePercentage: cfg.Storage.AutoRewritePercentage,
		AutoRewriteMinSize:    cfg.Storage.AutoRewriteMinSize,
		SavePoints:            points,
		RateLimit:             cfg.Server.RateLimit,
		Logger:                log,
		Metrics:               metrics,
	}

	switch cfg.Server.Mode {
	case "threaded":
		return server.NewThreaded(srvCfg).ListenAndServe(sh.Context())
	default:
		srv, err := server.New(srvCfg)
		if err != nil {
			return err
		}
		return srv.ListenAndServe(sh.Context())
	}
}

// loadConfig merges defaults, the optional config file, environment
// variables and command-line arguments. The port resolves in priority
// order: --port, positional argument, PortEnvVar, config file, default.
func loadConfig(c *cli.Context) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	switch {
	case c.IsSet("port"):
		cfg.Server.Port = c.Int("port")
	case c.Args().Len() > 0:
		p, err := strconv.Atoi(c.Args().First())
		if err != nil {
			return nil, fmt.Errorf("invalid port argument %q", c.Args().First())
		}
		cfg.Server.Port = p
	default:
		if env := os.Getenv(PortEnvVar); env != "" {
			if p, err := strconv.Atoi(env); err == nil {
				cfg.Server.Port = p
			}
		}
	}

	if c.IsSet("mode") {
		cfg.Server.Mode = c.String("mode")
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
