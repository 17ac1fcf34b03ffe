package logging

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eugenenazirov/gin-bindings/internal/bindings"
)

// ErrUnknownLevel is returned when a level name or number has no zap equivalent.
var ErrUnknownLevel = errors.New("unknown log level")

// New creates a production-ready structured logger configured for JSON output
// that emits entries at or above level.
func New(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.DisableStacktrace = false

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// ParseLevel accepts zap level names as well as the WARNING and CRITICAL
// spellings used by binding files.
func ParseLevel(raw string) (zapcore.Level, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch name {
	case "warning":
		return zapcore.WarnLevel, nil
	case "critical":
		return zapcore.FatalLevel, nil
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("%w: %q", ErrUnknownLevel, raw)
	}
	return level, nil
}

// numericLevels follows the numbering of the default level constants.
var numericLevels = map[int64]zapcore.Level{
	10: zapcore.DebugLevel,
	20: zapcore.InfoLevel,
	30: zapcore.WarnLevel,
	40: zapcore.ErrorLevel,
	50: zapcore.FatalLevel,
}

// LevelFromValue maps a resolved binding such as %DEBUG, 20 or 'warning'
// onto a zap level.
func LevelFromValue(v bindings.Value) (zapcore.Level, error) {
	switch v.Kind {
	case bindings.KindConstant:
		if level, ok := numericLevels[v.Int]; ok {
			return level, nil
		}
		return ParseLevel(v.Str)
	case bindings.KindInt:
		if level, ok := numericLevels[v.Int]; ok {
			return level, nil
		}
		return zapcore.InfoLevel, fmt.Errorf("%w: %d", ErrUnknownLevel, v.Int)
	case bindings.KindString:
		return ParseLevel(v.Str)
	default:
		return zapcore.InfoLevel, fmt.Errorf("%w: %s value %s", ErrUnknownLevel, v.Kind, v)
	}
}
