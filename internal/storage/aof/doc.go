// Package aof implements the append-only command log.
//
// Mutating commands are appended one per line, exactly as received minus
// the line terminator. On startup the log is replayed through the command
// codec to rebuild the keyspace. A background rewrite regenerates a minimal
// equivalent log (one SET per live key) into a temp file that atomically
// replaces the live log; commands appended while the rewrite is in flight
// are captured by the owner and appended to the new file before the swap.
package aof
