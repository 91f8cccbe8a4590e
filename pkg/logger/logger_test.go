package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fvdownloader/pkg/config"

	"github.com/rs/zerolog"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	return &zerologLogger{
		logger: zerolog.New(buf).Level(zerolog.DebugLevel),
		fields: make(map[string]interface{}),
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "loud"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestNewWithWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	l.Info("quiet")
	l.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "loud") {
		t.Error("warn message missing from output")
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.
		WithField("collection", "https://example.com/c?id=1").
		WithFields(map[string]interface{}{
			"records": 42,
			"strict":  true,
		}).
		InfoWithFields("paginated", map[string]interface{}{"pages": 3})

	output := buf.String()
	for _, want := range []string{
		"paginated",
		`"collection":"https://example.com/c?id=1"`,
		`"records":42`,
		`"strict":true`,
		`"pages":3`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %s: %s", want, output)
		}
	}
}

func TestWithFieldDoesNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	parent := newBufferLogger(&buf)

	_ = parent.WithField("child", "only")
	parent.Info("from parent")

	if strings.Contains(buf.String(), "child") {
		t.Errorf("parent picked up child field: %s", buf.String())
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	if logger.WithError(nil) != Logger(logger) {
		t.Error("WithError(nil) should return the same logger")
	}

	logger.WithError(errors.New("disk full")).Error("save failed")

	output := buf.String()
	if !strings.Contains(output, "save failed") || !strings.Contains(output, "disk full") {
		t.Errorf("unexpected output: %s", output)
	}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.WithFields(map[string]interface{}{
		"int64":    int64(456),
		"float":    3.14,
		"time":     time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		"duration": 5 * time.Second,
		"strings":  []string{"a", "b"},
		"err":      errors.New("boom"),
		"custom":   struct{ Name string }{Name: "test"},
	}).Info("all types")

	output := buf.String()
	if !strings.Contains(output, `"err":"boom"`) {
		t.Errorf("error field not rendered: %s", output)
	}
	if !strings.Contains(output, `"strings":["a","b"]`) {
		t.Errorf("string slice not rendered: %s", output)
	}
}

func TestGlobalLogger(t *testing.T) {
	test := NewTestLogger()
	SetLogger(test)
	defer SetLogger(NewNopLogger())

	WithField("key", "value").Info("with field")
	WithError(errors.New("x")).Error("with error")

	if !test.HasMessage("with field") {
		t.Error("global logger did not route to the installed logger")
	}
	if !test.HasError() {
		t.Error("expected an error level message")
	}
}

func TestTestLoggerSharesBuffer(t *testing.T) {
	test := NewTestLogger()
	child := test.WithField("worker", 2)
	child.WarnWithFields("retrying", map[string]interface{}{"attempt": 1})

	msgs := test.GetMessagesByLevel("WARN")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 warn message, got %d", len(msgs))
	}
	if msgs[0].Fields["worker"] != 2 || msgs[0].Fields["attempt"] != 1 {
		t.Errorf("unexpected fields: %v", msgs[0].Fields)
	}

	test.Clear()
	if len(test.GetMessages()) != 0 {
		t.Error("Clear() left messages behind")
	}
}
