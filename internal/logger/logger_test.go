package logger

import (
	"testing"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"debug level", "debug", "console"},
		{"info level", "info", "console"},
		{"warn level", "warn", "console"},
		{"error level", "error", "console"},
		{"json format", "info", "json"},
		{"uppercase level", "DEBUG", "console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Setup(tt.level, tt.format)
			if Log == nil {
				t.Error("expected Log to be initialized")
			}
		})
	}
}

func TestLoggerMethodsExist(t *testing.T) {
	if Log == nil {
		Setup("info", "console")
	}

	Log.Info("test info message", "key", "value")
	Log.Debug("test debug message", "key", "value")
	Log.Warn("test warn message", "key", "value")
	Log.Error("test error message", "key", "value")
}

func TestComponentLogger(t *testing.T) {
	if Log == nil {
		Setup("info", "console")
	}

	ed := Log.With("editors")
	if ed == nil {
		t.Fatal("expected child logger")
	}
	ed.Info("pair generated", "editor", "rotate_segments", "count", 8)
}

func TestOddArgsDoNotPanic(t *testing.T) {
	if Log == nil {
		Setup("info", "console")
	}

	Log.Info("odd args", "dangling")
}
