// Package snapshot writes and loads point-in-time dumps of the keyspace.
//
// The dump is a fixed-shape JSON text file written line by line and read
// back with a line-oriented scanner. The format cannot represent keys or
// values containing a double quote or a newline: a pair broken across lines
// by an embedded newline is dropped, and an embedded double quote makes the
// loader read a truncated or shifted key/value pair. Writers replace the file atomically via a temp file and
// rename, so a partial dump is never visible under the canonical name.
package snapshot
