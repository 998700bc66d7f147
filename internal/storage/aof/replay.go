package aof

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/keidaro/redstone/internal/protocol"
	"github.com/keidaro/redstone/internal/storage/memory"
)

// Exists reports whether a log file is present in dir.
func Exists(dir string) bool {
	_, err := os.Stat(Path(dir))
	return err == nil
}

// Replay reads the log at path line by line and applies each mutating
// command to the store, bypassing reply formatting and re-appending.
// Unknown or malformed lines are skipped. It returns the number of
// commands applied.
func Replay(path string, st *memory.Store) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("aof: open for replay: %w", err)
	}
	defer file.Close()

	applied := 0
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			continue
		}

		cmd := protocol.Parse(line)
		switch cmd.Name {
		case "SET":
			if cmd.Key == "" || cmd.Value == "" {
				continue
			}
			st.Set(cmd.Key, cmd.Value)
			applied++
		case "DEL":
			if cmd.Key == "" {
				continue
			}
			st.Del(cmd.Key)
			applied++
		}
	}
	if err := sc.Err(); err != nil {
		return applied, fmt.Errorf("aof: replay: %w", err)
	}
	return applied, nil
}
