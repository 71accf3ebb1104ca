package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitWritesJSONToOutput(t *testing.T) {
	var buf bytes.Buffer
	closer, err := Init(Config{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer closer.Close()
	t.Cleanup(func() { _, _ = Init(DefaultConfig()) })

	logger := Component("relay")
	logger.Debug().Str("user", "alice").Msg("user connected")

	out := buf.String()
	for _, want := range []string{`"component":"relay"`, `"user":"alice"`, `"message":"user connected"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %q", want, out)
		}
	}
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ostruka.log")
	closer, err := Init(Config{Level: "info", Format: "json", File: path})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { _, _ = Init(DefaultConfig()) })

	Logger.Info().Msg("hello file")
	Logger.Debug().Msg("filtered")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("expected log line in file, got %q", data)
	}
	if strings.Contains(string(data), "filtered") {
		t.Errorf("debug line should be filtered, got %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
	}
	for input, want := range tests {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}
