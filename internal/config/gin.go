package config

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/eugenenazirov/gin-bindings/internal/bindings"
	"github.com/eugenenazirov/gin-bindings/internal/logging"
)

// ginTarget is the configurable a .gin settings file binds, e.g.
// `Server.port = 9090`.
const ginTarget = "Server"

// ginConfig receives the Server.* bindings of a .gin settings file. Unset
// parameters stay nil. Durations are given in seconds.
type ginConfig struct {
	Port                 bindings.Value
	BindingFiles         []string
	SearchPaths          []string
	LogLevel             bindings.Value
	ShutdownGracePeriod  *time.Duration
	ReadHeaderTimeout    *time.Duration
	WriteTimeout         *time.Duration
	IdleTimeout          *time.Duration
	EnableRequestLogging *bool
	MaxBodyBytes         *int64
	RateLimitRPS         *float64 `gin:"rate_limit_rps"`
	RateLimitBurst       *int
}

func loadGinFile(path string) (*ginConfig, error) {
	table, err := bindings.NewLoader().Load(context.Background(), path)
	if err != nil {
		return nil, err
	}

	var ginCfg ginConfig
	if err := bindings.Bind(table, "", ginTarget, &ginCfg); err != nil {
		return nil, err
	}
	return &ginCfg, nil
}

func applyGinConfig(cfg *Config, ginCfg *ginConfig) error {
	switch ginCfg.Port.Kind {
	case bindings.KindNone:
	case bindings.KindInt:
		cfg.Port = strconv.FormatInt(ginCfg.Port.Int, 10)
	case bindings.KindString:
		cfg.Port = ginCfg.Port.Str
	default:
		return fmt.Errorf("%s.port: %w: expected int or string, got %s", ginTarget, bindings.ErrTypeMismatch, ginCfg.Port.Kind)
	}
	if len(ginCfg.BindingFiles) > 0 {
		cfg.BindingFiles = ginCfg.BindingFiles
	}
	if len(ginCfg.SearchPaths) > 0 {
		cfg.SearchPaths = ginCfg.SearchPaths
	}
	if ginCfg.LogLevel.Kind != bindings.KindNone {
		level, err := logging.LevelFromValue(ginCfg.LogLevel)
		if err != nil {
			return fmt.Errorf("%s.log_level: %w", ginTarget, err)
		}
		cfg.LogLevel = level
	}

	durations := []struct {
		src *time.Duration
		dst *time.Duration
	}{
		{ginCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{ginCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{ginCfg.WriteTimeout, &cfg.WriteTimeout},
		{ginCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.src != nil {
			*d.dst = *d.src
		}
	}

	if ginCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *ginCfg.EnableRequestLogging
	}
	if ginCfg.MaxBodyBytes != nil {
		cfg.MaxBodyBytes = *ginCfg.MaxBodyBytes
	}
	if ginCfg.RateLimitRPS != nil {
		cfg.RateLimitRPS = *ginCfg.RateLimitRPS
	}
	if ginCfg.RateLimitBurst != nil {
		cfg.RateLimitBurst = *ginCfg.RateLimitBurst
	}
	return nil
}
