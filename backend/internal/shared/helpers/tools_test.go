package helpers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"greenhouse-monitor/backend/internal/config"
)

func TestGetLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format config.LogFormat
		level  slog.Level
		check  func(t *testing.T, out string)
	}{
		{
			name:   "json",
			format: config.LogFormatJSON,
			level:  slog.LevelInfo,
			check: func(t *testing.T, out string) {
				t.Helper()

				var entry map[string]any
				if err := json.Unmarshal([]byte(out), &entry); err != nil {
					t.Fatalf("output is not JSON: %v\n%s", err, out)
				}

				if entry["msg"] != "hello" || entry["version"] == nil {
					t.Errorf("entry = %v", entry)
				}
			},
		},
		{
			name:   "text",
			format: config.LogFormatText,
			level:  slog.LevelInfo,
			check: func(t *testing.T, out string) {
				t.Helper()

				if !strings.Contains(out, "msg=hello") {
					t.Errorf("output = %q", out)
				}
			},
		},
		{
			name:   "level filters",
			format: config.LogFormatJSON,
			level:  slog.LevelError,
			check: func(t *testing.T, out string) {
				t.Helper()

				if out != "" {
					t.Errorf("output = %q, want nothing below error", out)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			l := GetLogger(&config.Config{LogLevel: tt.level, LogFormat: tt.format, LogOutput: &buf})
			l.Info("hello")

			tt.check(t, buf.String())
		})
	}
}
