package server

import (
	"os"
	"time"

	"github.com/keidaro/redstone/internal/protocol"
	"github.com/keidaro/redstone/internal/storage/aof"
)

// SavePoint is one row of the automatic snapshot trigger table: snapshot
// when at least After has elapsed since the last save and at least Changes
// mutations have accumulated.
type SavePoint struct {
	After   time.Duration
	Changes int
}

// DefaultSavePoints returns the standard trigger table:
//
//	15 min and >1 change, 5 min and 10 changes, 1 min and 10000 changes.
func DefaultSavePoints() []SavePoint {
	return []SavePoint{
		{After: 900 * time.Second, Changes: 2},
		{After: 300 * time.Second, Changes: 10},
		{After: 60 * time.Second, Changes: 10000},
	}
}

type workerTask int

const (
	taskSnapshot workerTask = iota
	taskRewrite
)

// workerResult is the completion notice a persistence worker delivers back
// to the core loop.
type workerResult struct {
	task workerTask
	path string // rewrite temp file
	err  error
}

// recordMutation runs the post-mutation bookkeeping for one successful
// SET/DEL: the AOF append (ordered before the reply is enqueued), the
// rewrite-tail capture, and the snapshot-trigger counter.
func (s *Server) recordMutation(line string) {
	if s.aof != nil {
		needRewrite, err := s.aof.Append(line)
		if err != nil {
			s.logger.Error("aof append failed", "error", err)
		}
		if s.rewriteRunning {
			// Captured while a rewrite worker runs; appended to the new
			// log before it replaces the old one.
			s.rewriteTail = append(s.rewriteTail, line)
		}
		if needRewrite && !s.rewriteRunning {
			s.logger.Info("aof grew past rewrite threshold")
			s.startRewrite(true)
		}
	}

	s.changesSinceSave++
	if s.metrics != nil {
		s.metrics.KeyspaceSize.Set(float64(s.store.Len()))
	}
}

// tick runs the periodic checks: the snapshot trigger table and the AOF
// fsync cadence.
func (s *Server) tick(now time.Time) {
	if !s.snapshotRunning && s.shouldSaveSnapshot(now) {
		s.logger.Info("snapshot trigger fired",
			"changes", s.changesSinceSave,
			"since_last_save", now.Sub(s.lastSave).Truncate(time.Second))
		s.startSnapshot(true)
		// Counters reset when the save is triggered, not when the worker
		// completes.
		s.changesSinceSave = 0
		s.lastSave = now
	}

	if s.aof != nil {
		synced, err := s.aof.MaybeSync(now)
		if err != nil {
			s.logger.Error("aof fsync failed", "error", err)
		}
		if synced && s.metrics != nil {
			s.metrics.FsyncsTotal.Inc()
		}
	}
}

func (s *Server) shouldSaveSnapshot(now time.Time) bool {
	elapsed := now.Sub(s.lastSave)
	for _, sp := range s.cfg.SavePoints {
		if elapsed >= sp.After && s.changesSinceSave >= sp.Changes {
			return true
		}
	}
	return false
}

// startSnapshot hands a copy of the keyspace to a background worker that
// serializes it to disk. At most one snapshot worker runs at a time. The
// returned string is the RESP reply for a client-issued BGSAVE; automatic
// triggers discard it.
func (s *Server) startSnapshot(auto bool) string {
	if s.snapshotRunning {
		if auto {
			s.logger.Warn("snapshot trigger while save in progress")
		}
		return protocol.Error("ERR Background save already in progress")
	}

	items := s.store.All()
	s.snapshotRunning = true
	if auto {
		s.logger.Info("automatic background save started", "keys", len(items))
	} else {
		s.logger.Info("background save started", "keys", len(items))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.snap.Write(items)
		s.workerDone <- workerResult{task: taskSnapshot, err: err}
	}()

	return protocol.SimpleString("Background saving started")
}

// startRewrite hands a copy of the keyspace to a background worker that
// writes a minimal log to the temp file. The swap happens on the core loop
// when the worker's completion arrives. At most one rewrite worker runs at
// a time.
func (s *Server) startRewrite(auto bool) string {
	if s.aof == nil {
		return protocol.Error("ERR AOF is disabled")
	}
	if s.rewriteRunning {
		if auto {
			s.logger.Warn("rewrite trigger while rewrite in progress")
		}
		return protocol.Error("ERR Background AOF rewrite already in progress")
	}

	items := s.store.All()
	tempPath := s.aof.TempPath()
	s.rewriteRunning = true
	s.rewriteTail = nil
	if auto {
		s.logger.Info("automatic aof rewrite started", "keys", len(items))
	} else {
		s.logger.Info("aof rewrite started", "keys", len(items))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := aof.WriteRewrite(tempPath, items)
		s.workerDone <- workerResult{task: taskRewrite, path: tempPath, err: err}
	}()

	return protocol.SimpleString("Background AOF rewrite started")
}

// handleWorkerDone reaps a finished persistence worker on the core loop.
// A successful rewrite triggers the log handoff: tail appended, temp file
// renamed over the live log, log reopened, baseline reset.
func (s *Server) handleWorkerDone(res workerResult) {
	switch res.task {
	case taskSnapshot:
		s.snapshotRunning = false
		if res.err != nil {
			s.logger.Error("background save failed", "error", res.err)
			return
		}
		s.logger.Info("background save completed")
		if s.metrics != nil {
			s.metrics.SnapshotsTotal.Inc()
		}

	case taskRewrite:
		tail := s.rewriteTail
		s.rewriteTail = nil
		s.rewriteRunning = false

		if res.err != nil {
			s.logger.Error("aof rewrite failed", "error", res.err)
			_ = os.Remove(res.path)
			return
		}
		if s.aof == nil {
			_ = os.Remove(res.path)
			return
		}
		if err := s.aof.CompleteRewrite(res.path, tail); err != nil {
			s.logger.Error("aof rewrite handoff failed", "error", err)
			return
		}
		if s.metrics != nil {
			s.metrics.RewritesTotal.Inc()
			if size, err := s.aof.Size(); err == nil {
				s.metrics.AOFSize.Set(float64(size))
			}
		}
	}
}
