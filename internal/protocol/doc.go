// Package protocol implements the command codec: parsing of the
// line-oriented command format and formatting of RESP replies.
//
// Requests are whitespace-separated tokens on a single line (verb, key,
// value); replies use the RESP framings (simple string, error, integer,
// bulk string, null bulk). Keys and values containing whitespace are not
// representable in this line protocol.
package protocol
