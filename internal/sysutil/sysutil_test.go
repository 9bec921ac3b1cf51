package sysutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetLogLevel_AllVariants(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"  DeBuG  ", zerolog.DebugLevel}, // case + trim
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel}, // empty -> info
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel}, // alias
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel}, // default
	}

	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Fatalf("SetLogLevel(%q) => %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetupLogger_JSONWithService(t *testing.T) {
	origLevel, origLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(origLevel)
		log.Logger = origLogger
	})

	var buf bytes.Buffer
	SetupLogger(&buf, "warn", false, "telehealth-test")

	log.Info().Msg("dropped")
	log.Warn().Str("k", "v").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one line at warn level, got %d: %q", len(lines), buf.String())
	}
	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if ev["service"] != "telehealth-test" || ev["message"] != "kept" || ev["k"] != "v" {
		t.Fatalf("unexpected event: %v", ev)
	}
	if _, ok := ev["time"]; !ok {
		t.Fatalf("missing timestamp: %v", ev)
	}
}

func TestSetupLogger_Pretty(t *testing.T) {
	origLevel, origLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(origLevel)
		log.Logger = origLogger
	})

	var buf bytes.Buffer
	SetupLogger(&buf, "info", true, "svc")
	log.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, "hello") || strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected console output, got %q", out)
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "nope.env")
	file := filepath.Join(dir, "test.env")
	if err := os.WriteFile(file, []byte("SYSUTIL_DOTENV_A=from-file\nSYSUTIL_DOTENV_B=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SYSUTIL_DOTENV_B", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("SYSUTIL_DOTENV_A") })

	got, err := LoadDotenv(missing, file)
	if err != nil || got != file {
		t.Fatalf("LoadDotenv = %q, %v; want %q", got, err, file)
	}
	if v := os.Getenv("SYSUTIL_DOTENV_A"); v != "from-file" {
		t.Fatalf("A = %q", v)
	}
	if v := os.Getenv("SYSUTIL_DOTENV_B"); v != "from-env" {
		t.Fatalf("existing variables must win, B = %q", v)
	}

	got, err = LoadDotenv(missing)
	if err != nil || got != "" {
		t.Fatalf("no files: got %q, %v", got, err)
	}
}
