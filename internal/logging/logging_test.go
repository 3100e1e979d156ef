package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/logging"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":     slog.LevelDebug,
		"INFO":      slog.LevelInfo,
		" warn ":    slog.LevelWarn,
		"warning":   slog.LevelWarn,
		"error":     slog.LevelError,
		"":          slog.LevelInfo,
		"loudly":    slog.LevelInfo,
	}
	for in, want := range cases {
		if got := logging.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Options{Level: "info", Format: "json", Output: &buf})
	log.Info("served", "path", "/index.html", "status", 200)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["msg"] != "served" || entry["path"] != "/index.html" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Options{Level: "warn", Format: "text", Output: &buf})
	log.Info("quiet")
	log.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatal("info should be filtered at warn level")
	}
	if !strings.Contains(out, "loud") {
		t.Fatal("warn should pass")
	}
}
