package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func resetForTest(buf *bytes.Buffer) {
	SetOutput(buf)
	SetLevel(LevelDebug)
	SetJSONFormat(false)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	resetForTest(&buf)
	SetLevel(LevelWarn)

	Info("test", "should not appear")
	Warn("test", "should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Error("info message emitted below minimum level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn message missing")
	}
}

func TestInfoCFFields(t *testing.T) {
	var buf bytes.Buffer
	resetForTest(&buf)

	InfoCF("mcp", "session.opened", map[string]interface{}{
		"session_id": "abc",
		"remote":     "127.0.0.1",
	})

	out := buf.String()
	if !strings.Contains(out, "session.opened") {
		t.Errorf("event name missing: %s", out)
	}
	if !strings.Contains(out, "remote=127.0.0.1") || !strings.Contains(out, "session_id=abc") {
		t.Errorf("fields missing: %s", out)
	}
	// remote comes before session_id (sorted keys)
	if strings.Index(out, "remote=") > strings.Index(out, "session_id=") {
		t.Errorf("fields not sorted: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	resetForTest(&buf)
	SetJSONFormat(true)
	defer SetJSONFormat(false)

	ErrorCF("engine", "tool.failed", map[string]interface{}{"tool": "echo"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v (%s)", err, buf.String())
	}
	if entry["level"] != "ERROR" || entry["component"] != "engine" || entry["tool"] != "echo" {
		t.Errorf("unexpected entry: %v", entry)
	}
}
