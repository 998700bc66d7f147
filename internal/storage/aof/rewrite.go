package aof

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/keidaro/redstone/internal/protocol"
)

// WriteRewrite writes a minimal equivalent log (one SET per live key) to
// path. Workers call this with a private copy of the keyspace; the
// function performs file I/O only and never touches shared state. The
// caller renames the file over the live log via Log.CompleteRewrite.
func WriteRewrite(path string, items map[string]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("aof: create rewrite file: %w", err)
	}

	if err := writeRewriteBody(file, items); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("aof: sync rewrite file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("aof: close rewrite file: %w", err)
	}
	return nil
}

func writeRewriteBody(file *os.File, items map[string]string) error {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := bufio.NewWriter(file)
	for _, k := range keys {
		cmd := protocol.Command{Name: "SET", Key: k, Value: items[k]}
		if _, err := w.WriteString(cmd.String()); err != nil {
			return fmt.Errorf("aof: write rewrite entry: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("aof: write rewrite entry: %w", err)
		}
	}
	return w.Flush()
}
