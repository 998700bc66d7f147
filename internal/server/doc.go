// Package server implements the redstone network servers.
//
// The primary server is a single core-loop design: one goroutine owns the
// keyspace, the append-only log and all persistence counters, and
// multiplexes over inbound command frames, persistence-worker completions
// and a periodic tick. Per-connection goroutines do only socket I/O:
// readers frame newline-terminated commands out of the byte stream and
// writers drain reply buffers. Background persistence serializes a private
// copy of the keyspace taken on the core loop, so workers never share
// mutable state with it.
//
// A thread-per-connection variant without persistence is kept as an
// alternative mode selected at startup.
package server
