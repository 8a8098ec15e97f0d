package zerolog

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

func TestZerologLogger_NewLogger(t *testing.T) {
	output := bytes.Buffer{}
	zlog := zerolog.New(&output)
	logger := NewLogger(&zlog)

	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	// nil falls back to a no-op logger
	NewLogger(nil).Info("dropped")
}

func TestZerologLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*Logger)
	}{
		{"debug", func(l *Logger) { l.Debug("test message", document.LogField{Key: "key", Value: "value"}) }},
		{"info", func(l *Logger) { l.Info("test message", document.LogField{Key: "key", Value: "value"}) }},
		{"warn", func(l *Logger) { l.Warn("test message", document.LogField{Key: "key", Value: "value"}) }},
		{"error", func(l *Logger) { l.Error("test message", document.LogField{Key: "key", Value: "value"}) }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			output := bytes.Buffer{}
			zlog := zerolog.New(&output)
			tt.log(NewLogger(&zlog))

			line := output.String()
			if !strings.Contains(line, `"level":"`+tt.level+`"`) {
				t.Errorf("Expected level %s in %s", tt.level, line)
			}
			if !strings.Contains(line, `"key":"value"`) {
				t.Errorf("Expected field in %s", line)
			}
		})
	}
}

func TestZerologLogger_LogLevelFiltering(t *testing.T) {
	output := bytes.Buffer{}
	zlog := zerolog.New(&output).Level(zerolog.WarnLevel)
	logger := NewLogger(&zlog)

	logger.Debug("debug message")
	logger.Info("info message")

	if output.Len() != 0 {
		t.Error("Expected debug and info to be filtered out")
	}

	logger.Warn("warn message")
	logger.Error("error message")

	if output.Len() == 0 {
		t.Error("Expected warn and error to be logged")
	}
}

func TestZerologLogger_ErrorField(t *testing.T) {
	output := bytes.Buffer{}
	zlog := zerolog.New(&output)
	NewLogger(&zlog).Error("save failed", document.LogField{Key: "error", Value: errors.New("boom")})

	if !strings.Contains(output.String(), `"error":"boom"`) {
		t.Errorf("Expected error message to be rendered, got %s", output.String())
	}
}
