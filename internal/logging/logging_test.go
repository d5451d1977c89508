package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{" WARN ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		logger, err := New(tt.level)
		if err != nil {
			t.Errorf("New(%q) error: %v", tt.level, err)
			continue
		}
		if !logger.Core().Enabled(tt.want) {
			t.Errorf("New(%q) should enable %s", tt.level, tt.want)
		}
		if tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1) {
			t.Errorf("New(%q) should not enable %s", tt.level, tt.want-1)
		}
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("chatty"); err == nil {
		t.Fatal("New(chatty) should fail")
	}
}
