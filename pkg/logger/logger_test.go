package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"invalid": zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestInitWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "app.json.log")
	Init(Options{Level: "info", File: filepath.Join(dir, "app.log"), JSONFile: jsonPath})
	defer Set(zap.NewNop())

	Debug("скрыто")
	Info("обновление завершено", zap.Int("bars", 3))
	_ = GetLogger().Sync()

	f, err := os.Open(jsonPath)
	if err != nil {
		t.Fatalf("open json log: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []map[string]any
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("json decode: %v", err)
		}
		lines = append(lines, entry)
	}
	if len(lines) != 1 {
		t.Fatalf("expected one entry above debug level, got %d", len(lines))
	}
	if lines[0]["msg"] != "обновление завершено" || lines[0]["level"] != "INFO" {
		t.Fatalf("unexpected entry: %v", lines[0])
	}
}

func TestGetLoggerWithoutInit(t *testing.T) {
	Set(nil)
	if GetLogger() == nil {
		t.Fatalf("expected nop logger")
	}
}
