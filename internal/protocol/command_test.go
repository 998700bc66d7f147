package protocol

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{"set", "SET foo bar", Command{Name: "SET", Key: "foo", Value: "bar"}},
		{"lowercase verb", "set foo bar", Command{Name: "SET", Key: "foo", Value: "bar"}},
		{"mixed case verb", "SeT foo bar", Command{Name: "SET", Key: "foo", Value: "bar"}},
		{"get", "GET foo", Command{Name: "GET", Key: "foo"}},
		{"bare verb", "QUIT", Command{Name: "QUIT"}},
		{"trailing tokens ignored", "SET k v extra more", Command{Name: "SET", Key: "k", Value: "v"}},
		{"tabs and runs of spaces", "SET \t k  \t v", Command{Name: "SET", Key: "k", Value: "v"}},
		{"leading whitespace", "  GET foo", Command{Name: "GET", Key: "foo"}},
		{"empty line", "", Command{}},
		{"whitespace only", " \t ", Command{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.line)
			if got != tt.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseStringRoundTrip(t *testing.T) {
	cmds := []Command{
		{Name: "SET", Key: "foo", Value: "bar"},
		{Name: "GET", Key: "foo"},
		{Name: "DEL", Key: "k1"},
		{Name: "QUIT"},
	}
	for _, cmd := range cmds {
		if got := Parse(cmd.String()); got != cmd {
			t.Fatalf("Parse(String(%+v)) = %+v", cmd, got)
		}
	}
}

func TestKnown(t *testing.T) {
	for _, verb := range []string{"SET", "GET", "DEL", "EXISTS", "PING", "QUIT", "BGSAVE", "BGREWRITEAOF"} {
		if !Known(verb) {
			t.Fatalf("Known(%q) = false", verb)
		}
	}
	for _, verb := range []string{"FOO", "set", ""} {
		if Known(verb) {
			t.Fatalf("Known(%q) = true", verb)
		}
	}
}
