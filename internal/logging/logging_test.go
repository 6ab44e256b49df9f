package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		configured LogLevel
		logAt      LogLevel
		wantLogged bool
	}{
		{"debug at info", InfoLevel, DebugLevel, false},
		{"info at info", InfoLevel, InfoLevel, true},
		{"warn at info", InfoLevel, WarnLevel, true},
		{"error at warn", WarnLevel, ErrorLevel, true},
		{"info at error", ErrorLevel, InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(Config{Format: HumanFormat, Level: tt.configured, Output: &buf})

			logger.log(tt.logAt, "probe", nil)

			if got := buf.Len() > 0; got != tt.wantLogged {
				t.Errorf("logged = %v, want %v (output %q)", got, tt.wantLogged, buf.String())
			}
		})
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: JSONFormat, Level: DebugLevel, Output: &buf})

	logger.Info("scanning feature regions", map[string]interface{}{
		"regions": 1234,
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "scanning feature regions" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	fields, ok := entry["fields"].(map[string]interface{})
	if !ok || fields["regions"] != float64(1234) {
		t.Errorf("fields = %v", entry["fields"])
	}
}

func TestPushPopIndentation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: HumanFormat, Level: InfoLevel, Output: &buf})

	logger.Push("running PARIS", nil)
	logger.Info("binning feature regions", nil)
	logger.Pop("OK", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "running PARIS ...") {
		t.Errorf("push line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "  binning feature regions") {
		t.Errorf("nested line should be indented: %q", lines[1])
	}
	if !strings.Contains(lines[2], "... OK") {
		t.Errorf("pop line = %q", lines[2])
	}
}

func TestPopBelowZero(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: HumanFormat, Level: InfoLevel, Output: &buf})

	// Unbalanced Pop must not underflow the depth
	logger.Pop("done", nil)
	logger.Info("after", nil)

	if logger.depth != 0 {
		t.Errorf("depth = %d, want 0", logger.depth)
	}
}
