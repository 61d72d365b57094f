package logging

import (
	"testing"

	"github.com/kozaktomas/face-login/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{"defaults", config.LogConfig{}, zapcore.InfoLevel, false},
		{"debug console", config.LogConfig{Level: "debug", Format: "console"}, zapcore.DebugLevel, false},
		{"warn json", config.LogConfig{Level: "warn", Format: "json"}, zapcore.WarnLevel, false},
		{"bad level", config.LogConfig{Level: "loud"}, 0, true},
		{"bad format", config.LogConfig{Format: "xml"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if !logger.Core().Enabled(tt.wantLevel) {
				t.Errorf("level %v not enabled", tt.wantLevel)
			}
			if tt.wantLevel > zapcore.DebugLevel && logger.Core().Enabled(tt.wantLevel-1) {
				t.Errorf("level %v enabled below %v", tt.wantLevel-1, tt.wantLevel)
			}
		})
	}
}
