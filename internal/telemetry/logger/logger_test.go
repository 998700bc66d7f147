package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("hello", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "hello" || entry["key"] != "value" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "text", Output: &buf})

	log.Info("hello")

	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("text output = %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}

	log.Warn("loud")
	if buf.Len() == 0 {
		t.Fatal("warn suppressed at warn level")
	}
}

func TestSetLevelDynamic(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	SetLevel("error")
	if got := GetLevel(); got != "error" {
		t.Fatalf("GetLevel = %q, want error", got)
	}
	log.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info logged after SetLevel(error): %s", buf.String())
	}

	SetLevel("debug")
	if got := GetLevel(); got != "debug" {
		t.Fatalf("GetLevel = %q, want debug", got)
	}
	log.Debug("loud")
	if buf.Len() == 0 {
		t.Fatal("debug suppressed after SetLevel(debug)")
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if got := parseLevel("nonsense"); got != parseLevel("info") {
		t.Fatalf("parseLevel(nonsense) = %v, want info", got)
	}
}
