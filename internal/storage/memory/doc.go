// Package memory provides the in-memory keyspace for redstone.
//
// The keyspace is a plain string-to-string map and is deliberately
// unsynchronized: the event-loop server owns it from a single goroutine,
// and the threaded server wraps it in its own mutex. The locking
// discipline belongs to the owner, not to the keyspace.
package memory
