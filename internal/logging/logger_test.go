package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"WARN", LevelWarn},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetupWritesRotatedFileAndFiltersLevel(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "vision.log")
	closer, err := Setup(logFile, LevelWarn)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	t.Cleanup(func() {
		closer.Close()
		Setup("", LevelInfo)
	})

	logger := NewLogger("Test")
	logger.Info("hidden message")
	logger.Warn("plate not read", "request_id", "r-1", "dangling")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	out := string(data)

	if strings.Contains(out, "hidden message") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(out, "[Test] ") || !strings.Contains(out, "[WARN] plate not read request_id=r-1") {
		t.Errorf("unexpected log output %q", out)
	}
	if strings.Contains(out, "dangling") {
		t.Error("a key without a value should be dropped")
	}
}
