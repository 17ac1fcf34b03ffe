package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/eugenenazirov/gin-bindings/internal/bindings"
)

func TestNew(t *testing.T) {
	logger, err := New(zapcore.DebugLevel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger == nil {
		t.Fatalf("expected logger instance")
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug entries to be enabled")
	}
	_ = logger.Sync()

	quiet, err := New(zapcore.ErrorLevel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quiet.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("expected warn entries to be filtered at error level")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]zapcore.Level{
		"debug":    zapcore.DebugLevel,
		"INFO":     zapcore.InfoLevel,
		" warn ":   zapcore.WarnLevel,
		"WARNING":  zapcore.WarnLevel,
		"error":    zapcore.ErrorLevel,
		"critical": zapcore.FatalLevel,
	}
	for raw, want := range tests {
		got, err := ParseLevel(raw)
		if err != nil {
			t.Fatalf("ParseLevel(%q) returned error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q): expected %s, got %s", raw, want, got)
		}
	}

	if _, err := ParseLevel("loud"); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("expected ErrUnknownLevel, got %v", err)
	}
}

func TestLevelFromValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   bindings.Value
		want    zapcore.Level
		wantErr bool
	}{
		{name: "constant", value: bindings.Constant("DEBUG", 10), want: zapcore.DebugLevel},
		{name: "custom constant name", value: bindings.Constant("error", 99), want: zapcore.ErrorLevel},
		{name: "number", value: bindings.Int(30), want: zapcore.WarnLevel},
		{name: "string", value: bindings.String("info"), want: zapcore.InfoLevel},
		{name: "unknown number", value: bindings.Int(7), wantErr: true},
		{name: "wrong kind", value: bindings.Float(0.5), wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := LevelFromValue(tc.value)
			if tc.wantErr {
				if !errors.Is(err, ErrUnknownLevel) {
					t.Fatalf("expected ErrUnknownLevel, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
