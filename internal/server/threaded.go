package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/keidaro/redstone/internal/protocol"
	"github.com/keidaro/redstone/internal/storage/memory"
)

// ThreadedServer is the alternative connection-per-goroutine server. Each
// client is served synchronously by its own goroutine; the keyspace is
// guarded by a single mutex. This mode carries no persistence.
type ThreadedServer struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	store *memory.Store

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter

	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	ln      net.Listener
	ready   chan struct{}
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewThreaded creates a ThreadedServer.
func NewThreaded(cfg Config) *ThreadedServer {
	cfg.applyDefaults()
	return &ThreadedServer{
		cfg:      cfg,
		logger:   cfg.Logger,
		store:    memory.New(),
		limiters: make(map[string]*rate.Limiter),
		conns:    make(map[net.Conn]struct{}),
		ready:    make(chan struct{}),
	}
}

// ListenAndServe accepts connections until ctx is cancelled. Startup
// errors are returned; per-connection errors only drop that connection.
func (s *ThreadedServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		close(s.ready)
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	close(s.ready)
	s.running.Store(true)
	s.logger.Info("server listening", "addr", ln.Addr().String(), "mode", "threaded")

	go func() {
		<-ctx.Done()
		s.running.Store(false)
		_ = ln.Close()
		s.connMu.Lock()
		for nc := range s.conns {
			_ = nc.Close()
		}
		s.connMu.Unlock()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(nc)
		}()
	}

	s.wg.Wait()
	s.logger.Info("server stopped")
	return nil
}

// Addr returns the bound listen address. It blocks until ListenAndServe
// has attempted to bind, and returns nil if binding failed.
func (s *ThreadedServer) Addr() net.Addr {
	<-s.ready
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *ThreadedServer) serveConn(nc net.Conn) {
	s.connMu.Lock()
	s.conns[nc] = struct{}{}
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		delete(s.conns, nc)
		s.connMu.Unlock()
		_ = nc.Close()
	}()

	limiter := s.limiterFor(nc.RemoteAddr().String())
	r := bufio.NewReader(nc)

	for {
		raw, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line := strings.TrimSuffix(strings.TrimSuffix(raw, "\n"), "\r")
		if line == "" {
			continue
		}

		cmd := protocol.Parse(line)
		if cmd.Name == "QUIT" {
			_, _ = nc.Write([]byte(protocol.SimpleString("OK")))
			return
		}

		if limiter != nil && !limiter.Allow() {
			if _, err := nc.Write([]byte(protocol.Error("ERR rate limit exceeded"))); err != nil {
				return
			}
			continue
		}

		s.mu.Lock()
		res := protocol.Execute(cmd, s.store)
		s.mu.Unlock()

		if _, err := nc.Write([]byte(res.Reply)); err != nil {
			return
		}
	}
}

// limiterFor returns the per-IP limiter, or nil when limiting is off.
func (s *ThreadedServer) limiterFor(remote string) *rate.Limiter {
	if s.cfg.RateLimit <= 0 {
		return nil
	}
	ip := remote
	if i := strings.LastIndex(ip, ":"); i != -1 {
		ip = ip[:i]
	}

	s.limMu.Lock()
	defer s.limMu.Unlock()
	l, ok := s.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateLimit)
		s.limiters[ip] = l
	}
	return l
}
