// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the globals.yaml configuration.
package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/globals/services/globals/ast"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed default_config.yaml
var defaultConfigYAML []byte

// MaxYAMLFileSize bounds the size of a config file.
const MaxYAMLFileSize = 1 << 20

// GlobalPlaceholder is replaced by the global expression in DynamicWrapper.
const GlobalPlaceholder = "{global}"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GLOBALS_"

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// =============================================================================
// Types
// =============================================================================

// Config is the full configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	// Names maps module specifiers to global expressions.
	Names map[string]string `yaml:"names" validate:"dive,keys,required,endkeys,required"`

	// Include and Exclude select files by slash-separated glob.
	Include []string `yaml:"include" validate:"dive,required"`
	Exclude []string `yaml:"exclude" validate:"dive,required"`

	// DynamicWrapper is the replacement template for import("x").
	DynamicWrapper string `yaml:"dynamic_wrapper" validate:"required"`

	// MaxFileSize is the largest file the parser accepts, in bytes.
	MaxFileSize int `yaml:"max_file_size" validate:"gt=0"`

	// Concurrency bounds parallel file transforms.
	Concurrency int `yaml:"concurrency" validate:"gte=1,lte=256"`

	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// CacheConfig configures the transform output cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Dir      string        `yaml:"dir" validate:"required_unless=InMemory true"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
	InMemory bool          `yaml:"in_memory"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int     `yaml:"port" validate:"gte=1,lte=65535"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" validate:"gte=0"`
	Burst              int     `yaml:"burst" validate:"gte=0"`
}

// TelemetryConfig selects the trace exporter.
type TelemetryConfig struct {
	Exporter     string `yaml:"exporter" validate:"oneof=none stdout otlp"`
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=Exporter otlp"`

	// OTLPInsecure disables TLS to the collector.
	OTLPInsecure bool `yaml:"otlp_insecure"`
}

// WrapDynamic renders a dynamic_wrapper template for global.
func WrapDynamic(template, global string) string {
	return strings.ReplaceAll(template, GlobalPlaceholder, global)
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Loading
// =============================================================================

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := Parse(defaultConfigYAML, nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	if len(cfg.Include) == 0 {
		cfg.Include = DefaultInclude()
	}
	return cfg
}

// DefaultInclude returns one "**/*<ext>" pattern per JavaScript extension.
func DefaultInclude() []string {
	exts := ast.Extensions()
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		out = append(out, "**/*"+ext)
	}
	return out
}

// Load builds the effective configuration.
//
// Description:
//
//	Starts from the embedded defaults, overlays the YAML file at path (if
//	path is non-empty), applies GLOBALS_* environment overrides and
//	validates the result.
//
// Inputs:
//
//	ctx  - Context for tracing.
//	path - Optional config file path. A missing file is an error.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error   - Read, parse or validation failure. Validation failures wrap
//	          ErrInvalidConfig.
func Load(ctx context.Context, path string) (*Config, error) {
	_, span := otel.Tracer("globals.config").Start(ctx, "config.Load")
	defer span.End()

	cfg := Default()
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
		if info.Size() > MaxYAMLFileSize {
			return nil, fmt.Errorf("config.Load: %s exceeds maximum size (%d > %d)", path, info.Size(), MaxYAMLFileSize)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
		if cfg, err = Parse(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: %s: %w", path, err)
		}
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	span.SetAttributes(
		attribute.String("path", path),
		attribute.Int("names", len(cfg.Names)),
		attribute.Bool("cache_enabled", cfg.Cache.Enabled),
		attribute.String("telemetry", cfg.Telemetry.Exporter),
	)
	slog.Debug("config loaded",
		slog.String("path", path),
		slog.Int("names", len(cfg.Names)),
		slog.Int("concurrency", cfg.Concurrency),
	)
	return cfg, nil
}

// Parse decodes YAML onto base. A nil base starts from zero values.
// Maps in base are merged with the decoded ones; scalars and lists are
// replaced when present.
func Parse(data []byte, base *Config) (*Config, error) {
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}
	cfg := &Config{}
	if base != nil {
		clone := *base
		clone.Names = make(map[string]string, len(base.Names))
		for k, v := range base.Names {
			clone.Names[k] = v
		}
		cfg = &clone
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if cfg.Names == nil {
		cfg.Names = make(map[string]string)
	}
	return cfg, nil
}

// Validate checks struct constraints and the wrapper placeholder.
func Validate(cfg *Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !strings.Contains(cfg.DynamicWrapper, GlobalPlaceholder) {
		return fmt.Errorf("%w: dynamic_wrapper must contain %s", ErrInvalidConfig, GlobalPlaceholder)
	}
	return nil
}

// =============================================================================
// Environment overrides
// =============================================================================

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from GLOBALS_* variables.
//
// GLOBALS_NAMES holds comma-separated spec=global pairs that are added to
// Names. Malformed numbers and booleans are errors rather than being
// ignored, so a typo in a deployment does not silently fall back.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var firstErr error
	setErr := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				setErr(fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				setErr(fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("LOG_LEVEL", &cfg.LogLevel)
	str("DYNAMIC_WRAPPER", &cfg.DynamicWrapper)
	num("CONCURRENCY", &cfg.Concurrency)
	num("MAX_FILE_SIZE", &cfg.MaxFileSize)
	boolean("CACHE_ENABLED", &cfg.Cache.Enabled)
	str("CACHE_DIR", &cfg.Cache.Dir)
	boolean("CACHE_IN_MEMORY", &cfg.Cache.InMemory)
	num("SERVER_PORT", &cfg.Server.Port)
	str("TELEMETRY_EXPORTER", &cfg.Telemetry.Exporter)
	str("OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	boolean("OTLP_INSECURE", &cfg.Telemetry.OTLPInsecure)

	if v, ok := lookup(EnvPrefix + "CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			setErr(fmt.Errorf("%sCACHE_TTL: %w", EnvPrefix, err))
		} else {
			cfg.Cache.TTL = d
		}
	}

	if v, ok := lookup(EnvPrefix + "NAMES"); ok && v != "" {
		if cfg.Names == nil {
			cfg.Names = make(map[string]string)
		}
		for _, pair := range strings.Split(v, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			spec, global, found := strings.Cut(pair, "=")
			if !found || spec == "" || global == "" {
				setErr(fmt.Errorf("%sNAMES: malformed pair %q", EnvPrefix, pair))
				continue
			}
			cfg.Names[strings.TrimSpace(spec)] = strings.TrimSpace(global)
		}
	}
	return firstErr
}
