package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirection string

func (d fakeDirection) String() string { return string(d) }

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"ERROR", ErrorLevel},
		{"  Warn ", WarnLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLineageFields(t *testing.T) {
	type nodeID string

	tests := []struct {
		name  string
		field Field
		key   string
		value any
	}{
		{"NodeID", NodeID(nodeID("warehouse.orders")), "node_id", "warehouse.orders"},
		{"AnalysisID", AnalysisID("abc"), "analysis_id", "abc"},
		{"Direction", Direction(fakeDirection("upstream")), "direction", "upstream"},
		{"Depth", Depth(3), "depth", 3},
		{"Attempt", Attempt(2), "attempt", 2},
		{"Latency", Latency(1500 * time.Millisecond), "latency", "1.5s"},
		{"Error", Error(errors.New("boom")), "error", "boom"},
		{"NilError", Error(nil), "error", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.field.Key != tt.key || tt.field.Value != tt.value {
				t.Errorf("%s = %+v, want {Key:%s Value:%v}", tt.name, tt.field, tt.key, tt.value)
			}
		})
	}
}

func TestJSONLogger_BasicLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	logger.Info("node fetched", NodeID("a"), Depth(1))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry: %v", err)
	}

	if entry.Level != "INFO" {
		t.Errorf("Level = %v, want INFO", entry.Level)
	}
	if entry.Message != "node fetched" {
		t.Errorf("Message = %v, want 'node fetched'", entry.Message)
	}
	if entry.Fields["node_id"] != "a" {
		t.Errorf("Fields[node_id] = %v, want a", entry.Fields["node_id"])
	}
	if entry.Fields["depth"] != float64(1) {
		t.Errorf("Fields[depth] = %v, want 1", entry.Fields["depth"])
	}
	if entry.Time == "" {
		t.Error("Time field is empty")
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(lines))
	}

	for i, want := range []string{"WARN", "ERROR"} {
		var entry LogEntry
		if err := json.Unmarshal([]byte(lines[i]), &entry); err != nil {
			t.Fatalf("Failed to unmarshal entry %d: %v", i, err)
		}
		if entry.Level != want {
			t.Errorf("Entry %d level = %v, want %v", i, entry.Level, want)
		}
	}
}

func TestJSONLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	child := logger.With(Component("loader"), AnalysisID("run-1"))
	child.Warn("fetch retry", Attempt(2))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if entry.Fields["component"] != "loader" {
		t.Errorf("component field = %v, want loader", entry.Fields["component"])
	}
	if entry.Fields["analysis_id"] != "run-1" {
		t.Errorf("analysis_id field = %v, want run-1", entry.Fields["analysis_id"])
	}
	if entry.Fields["attempt"] != float64(2) {
		t.Errorf("attempt field = %v, want 2", entry.Fields["attempt"])
	}
}

func TestJSONLogger_ChildLoggersDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		child := logger.With(Int("worker", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				child.Info("fetch", Count(j))
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 200 {
		t.Fatalf("Expected 200 entries, got %d", len(lines))
	}
	for i, line := range lines {
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d is not a complete JSON entry: %v", i, err)
		}
	}
}

func TestJSONLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	logger.SetLevel(ErrorLevel)
	if logger.GetLevel() != ErrorLevel {
		t.Errorf("After SetLevel, level = %v, want ErrorLevel", logger.GetLevel())
	}

	logger.Info("info")
	if buf.Len() != 0 {
		t.Error("Expected no output for Info at ErrorLevel")
	}

	logger.Error("error")
	if buf.Len() == 0 {
		t.Error("Expected output for Error at ErrorLevel")
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(NopLogger); !ok {
		t.Error("OrNop(nil) should return a NopLogger")
	}

	l := NewJSONLogger(&bytes.Buffer{}, InfoLevel)
	if OrNop(l) != Logger(l) {
		t.Error("OrNop should return the given logger")
	}
}

func TestJSONLogger_ChildrenShareLevel(t *testing.T) {
	var buf bytes.Buffer
	root := NewJSONLogger(&buf, InfoLevel)
	child := root.With(Component("loader"))

	child.Debug("hidden")
	assert.Zero(t, buf.Len())

	root.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, child.GetLevel())
	child.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestJSONLogger_CallSiteFieldsOverride(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel).With(String("status", "running"))

	logger.Info("analysis finished", String("status", "ok"))

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ok", entry.Fields["status"])
}

func TestJSONLogger_UnencodableField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	logger.Info("bad", Any("ch", make(chan int)))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "unencodable log entry", entry["msg"])
}

func TestNopLoggerIsSilent(t *testing.T) {
	l := NewNopLogger()
	l.SetLevel(DebugLevel)
	assert.Greater(t, l.GetLevel(), ErrorLevel)
	assert.Equal(t, l, l.With(Count(1)))
}
