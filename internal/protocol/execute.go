package protocol

import "github.com/keidaro/redstone/internal/storage/memory"

// Result is the outcome of applying a command to the keyspace.
type Result struct {
	// Reply is the fully framed RESP reply.
	Reply string
	// Mutated reports whether the command successfully changed the
	// keyspace (a SET, or a DEL that removed a key). Mutated commands are
	// appended to the AOF and counted against the snapshot trigger.
	Mutated bool
}

// Execute applies a data command to the store and formats its reply.
//
// QUIT, BGSAVE and BGREWRITEAOF are connection- and server-level commands
// and are handled by the server before dispatch reaches here.
func Execute(cmd Command, st *memory.Store) Result {
	switch cmd.Name {
	case "SET":
		if cmd.Key == "" || cmd.Value == "" {
			return Result{Reply: ArityError("SET")}
		}
		st.Set(cmd.Key, cmd.Value)
		return Result{Reply: SimpleString("OK"), Mutated: true}

	case "GET":
		if cmd.Key == "" {
			return Result{Reply: ArityError("GET")}
		}
		v, ok := st.Get(cmd.Key)
		if !ok {
			return Result{Reply: NullBulk}
		}
		return Result{Reply: Bulk(v)}

	case "DEL":
		if cmd.Key == "" {
			return Result{Reply: ArityError("DEL")}
		}
		n := st.Del(cmd.Key)
		return Result{Reply: Integer(n), Mutated: n > 0}

	case "EXISTS":
		if cmd.Key == "" {
			return Result{Reply: ArityError("EXISTS")}
		}
		return Result{Reply: Integer(st.Exists(cmd.Key))}

	case "PING":
		if cmd.Key != "" {
			return Result{Reply: Bulk(cmd.Key)}
		}
		return Result{Reply: SimpleString("PONG")}

	case "QUIT":
		return Result{Reply: SimpleString("OK")}

	default:
		return Result{Reply: UnknownCommandError(cmd.Name)}
	}
}
