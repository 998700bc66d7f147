package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/keidaro/redstone/internal/protocol"
	"github.com/keidaro/redstone/internal/storage/aof"
	"github.com/keidaro/redstone/internal/storage/memory"
	"github.com/keidaro/redstone/internal/storage/snapshot"
	"github.com/keidaro/redstone/internal/telemetry/metric"
)

// readBufferSize is the size of the per-read chunk pulled off a socket.
const readBufferSize = 1024

// tickInterval drives the fsync cadence and snapshot-trigger checks.
const tickInterval = 100 * time.Millisecond

// Config configures a Server.
type Config struct {
	// Addr is the TCP listen address, e.g. ":6379".
	Addr string

	// DataDir holds the snapshot and append-only log files.
	DataDir string

	// AOFEnabled turns the append-only log on. A failed open at startup
	// disables it for the process.
	AOFEnabled bool

	// FsyncPolicy is the AOF fsync policy.
	FsyncPolicy aof.Policy

	// AutoRewritePercentage and AutoRewriteMinSize parameterize the AOF
	// auto-rewrite predicate. Zero values take the aof package defaults.
	AutoRewritePercentage int64
	AutoRewriteMinSize    int64

	// SavePoints is the automatic snapshot trigger table. Nil takes
	// DefaultSavePoints.
	SavePoints []SavePoint

	// RateLimit is the per-IP commands-per-second limit for the threaded
	// mode. Zero disables limiting. The event-loop server ignores it.
	RateLimit int

	Logger  *slog.Logger
	Metrics *metric.Registry
}

func (cfg *Config) applyDefaults() {
	if cfg.Addr == "" {
		cfg.Addr = ":6379"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.FsyncPolicy == "" {
		cfg.FsyncPolicy = aof.PolicyEverySec
	}
	if cfg.SavePoints == nil {
		cfg.SavePoints = DefaultSavePoints()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

type eventKind int

const (
	evFrame eventKind = iota
	evAccept
	evClosed
)

// event is one unit of work delivered to the core loop.
type event struct {
	kind eventKind
	c    *conn
	line string
}

// Server is the core-loop key/value server.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metric.Registry

	store *memory.Store
	snap  *snapshot.Manager
	aof   *aof.Log // nil when disabled

	ln         net.Listener
	ready      chan struct{}
	events     chan event
	workerDone chan workerResult
	conns      map[*conn]struct{}

	// Persistence counters, owned by the core loop.
	changesSinceSave int
	lastSave         time.Time
	snapshotRunning  bool
	rewriteRunning   bool
	rewriteTail      []string

	wg sync.WaitGroup
}

// New creates a Server. Recovery and socket setup happen in
// ListenAndServe.
func New(cfg Config) (*Server, error) {
	cfg.applyDefaults()

	snapMgr, err := snapshot.NewManager(cfg.DataDir, cfg.Logger)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:        cfg,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		store:      memory.New(),
		snap:       snapMgr,
		ready:      make(chan struct{}),
		events:     make(chan event, 128),
		workerDone: make(chan workerResult, 2),
		conns:      make(map[*conn]struct{}),
		lastSave:   time.Now(),
	}, nil
}

// ListenAndServe recovers persisted state, binds the listen socket and
// runs the core loop until ctx is cancelled. Startup errors (bind/listen)
// are returned; everything after startup is handled internally.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.recover()

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		close(s.ready)
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	close(s.ready)
	s.logger.Info("server listening", "addr", ln.Addr().String(), "mode", "eventloop")

	go s.acceptLoop(ctx)
	s.run(ctx)
	return nil
}

// Addr returns the bound listen address. It blocks until ListenAndServe
// has attempted to bind, and returns nil if binding failed.
func (s *Server) Addr() net.Addr {
	<-s.ready
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// recover seeds the keyspace from disk. The append-only log, when enabled
// and present, is authoritative; otherwise the snapshot is loaded; with
// neither the server starts empty.
func (s *Server) recover() {
	hadAOF := aof.Exists(s.cfg.DataDir)

	if s.cfg.AOFEnabled {
		log, err := aof.Open(aof.Config{
			Dir:                   s.cfg.DataDir,
			Policy:                s.cfg.FsyncPolicy,
			AutoRewritePercentage: s.cfg.AutoRewritePercentage,
			AutoRewriteMinSize:    s.cfg.AutoRewriteMinSize,
			Logger:                s.logger,
		})
		if err != nil {
			// AOF stays off for the rest of the process.
			s.logger.Error("aof open failed, disabling aof", "error", err)
		} else {
			s.aof = log
		}
	}

	if s.aof != nil && hadAOF {
		applied, err := aof.Replay(aof.Path(s.cfg.DataDir), s.store)
		if err != nil {
			s.logger.Error("aof replay failed", "error", err, "applied", applied)
		}
		s.logger.Info("keyspace recovered from aof", "commands", applied, "keys", s.store.Len())
		return
	}

	items, err := s.snap.Load()
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshot):
		s.logger.Info("no persisted state found, starting empty")
	case err != nil:
		s.logger.Error("snapshot load failed, starting empty", "error", err)
	default:
		s.store.Replace(items)
		s.logger.Info("keyspace recovered from snapshot", "keys", s.store.Len())
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		s.events <- event{kind: evAccept, c: newConn(nc)}
	}
}

// run is the core loop. It exclusively owns the keyspace, the AOF handle,
// the connection registry and the persistence counters.
func (s *Server) run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return

		case ev := <-s.events:
			switch ev.kind {
			case evAccept:
				s.conns[ev.c] = struct{}{}
				if s.metrics != nil {
					s.metrics.ConnectionsActive.Inc()
				}
				go ev.c.writeLoop()
				go s.readLoop(ev.c)

			case evFrame:
				s.handleFrame(ev.c, ev.line)

			case evClosed:
				if _, ok := s.conns[ev.c]; ok {
					delete(s.conns, ev.c)
					if s.metrics != nil {
						s.metrics.ConnectionsActive.Dec()
					}
				}
				ev.c.drainClose()
			}

		case res := <-s.workerDone:
			s.handleWorkerDone(res)

		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

// readLoop frames newline-terminated commands out of the socket byte
// stream. Partial frames stay buffered across reads, so pipelined and
// split commands both work.
func (s *Server) readLoop(c *conn) {
	buf := make([]byte, readBufferSize)
	var pending []byte

	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				line := strings.TrimSuffix(string(pending[:i]), "\r")
				pending = pending[i+1:]
				if line != "" {
					s.events <- event{kind: evFrame, c: c, line: line}
				}
			}
		}
		if err != nil {
			s.events <- event{kind: evClosed, c: c}
			return
		}
	}
}

// handleFrame dispatches one complete command line.
func (s *Server) handleFrame(c *conn, line string) {
	cmd := protocol.Parse(line)

	if s.metrics != nil {
		// Unknown verbs collapse into one label to bound cardinality.
		verb := cmd.Name
		if !protocol.Known(verb) {
			verb = "UNKNOWN"
		}
		s.metrics.CommandsTotal.WithLabelValues(verb).Inc()
	}

	switch cmd.Name {
	case "QUIT":
		c.enqueue(protocol.SimpleString("OK"))
		c.drainClose()

	case "BGSAVE":
		c.enqueue(s.startSnapshot(false))

	case "BGREWRITEAOF":
		c.enqueue(s.startRewrite(false))

	default:
		res := protocol.Execute(cmd, s.store)
		if res.Mutated {
			s.recordMutation(line)
		}
		c.enqueue(res.Reply)
	}
}

// shutdown closes the listener and all connections, waits for in-flight
// persistence workers, and closes the append-only log.
func (s *Server) shutdown() {
	s.logger.Info("server shutting down", "connections", len(s.conns))

	if s.ln != nil {
		_ = s.ln.Close()
	}
	for c := range s.conns {
		c.close()
		delete(s.conns, c)
	}

	// Let in-flight snapshot/rewrite workers finish and land their
	// results; workerDone is buffered so they never block.
	s.wg.Wait()
	for {
		select {
		case res := <-s.workerDone:
			s.handleWorkerDone(res)
		default:
			if s.aof != nil {
				if err := s.aof.Close(); err != nil {
					s.logger.Error("aof close failed", "error", err)
				}
			}
			s.logger.Info("server stopped")
			return
		}
	}
}
