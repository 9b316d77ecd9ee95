package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateProvider(cfg, ve)
	validateSelection(cfg, ve)
	validateEstimator(cfg, ve)
	validateMemory(cfg, ve)
	validateRetry(cfg, ve)
	validateLimits(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	if cfg.Server.Addr == "" {
		ve.Add("server.addr must not be empty")
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
		ve.Add("server.addr %q is not a valid host:port", cfg.Server.Addr)
	}
	if cfg.Server.PingInterval <= 0 {
		ve.Add("server.ping_interval must be > 0")
	}
}

func validateProvider(cfg *Config, ve *ValidationError) {
	if cfg.Provider.BaseURL == "" {
		ve.Add("provider.base_url must not be empty")
	}
	if cfg.Provider.Version == "" {
		ve.Add("provider.version must not be empty")
	}
	if cfg.Provider.RespTimeout <= 0 {
		ve.Add("provider.resp_timeout must be > 0")
	}
}

var validStrategies = map[string]bool{
	"balanced":    true,
	"cost-biased": true,
	"cheapest":    true,
}

var validTiers = map[string]bool{
	"lightweight": true,
	"balanced":    true,
	"advanced":    true,
}

func validateSelection(cfg *Config, ve *ValidationError) {
	if !validStrategies[cfg.Selection.Strategy] {
		ve.Add("selection.strategy %q is invalid (want: balanced, cost-biased, cheapest)", cfg.Selection.Strategy)
	}
	if t := cfg.Selection.PinStreamingTier; t != "" && !validTiers[t] {
		ve.Add("selection.pin_streaming_tier %q is invalid (want: lightweight, balanced, advanced)", t)
	}
}

func validateEstimator(cfg *Config, ve *ValidationError) {
	switch cfg.Estimator.Kind {
	case "heuristic", "tiktoken":
	default:
		ve.Add("estimator.kind %q is invalid (want: heuristic, tiktoken)", cfg.Estimator.Kind)
	}
	switch cfg.Estimator.Language {
	case "en", "pt":
	default:
		ve.Add("estimator.language %q is invalid (want: en, pt)", cfg.Estimator.Language)
	}
	if cfg.Estimator.Kind == "tiktoken" && cfg.Estimator.Encoding == "" {
		ve.Add("estimator.encoding must not be empty when kind is tiktoken")
	}
}

func validateMemory(cfg *Config, ve *ValidationError) {
	if cfg.Memory.TTL <= 0 {
		ve.Add("memory.ttl must be > 0")
	}
	if cfg.Memory.MaxEntries <= 0 {
		ve.Add("memory.max_entries must be > 0")
	}
	if cfg.Memory.MaxMessages <= 0 {
		ve.Add("memory.max_messages must be > 0")
	}
	if cfg.Memory.KeepRecent <= 0 {
		ve.Add("memory.keep_recent must be > 0")
	}
	if cfg.Memory.KeepRecent > cfg.Memory.MaxMessages {
		ve.Add("memory.keep_recent (%d) must not exceed memory.max_messages (%d)",
			cfg.Memory.KeepRecent, cfg.Memory.MaxMessages)
	}
}

func validateRetry(cfg *Config, ve *ValidationError) {
	if cfg.Retry.MaxRetries < 0 {
		ve.Add("retry.max_retries must be >= 0")
	}
	if cfg.Retry.BaseDelay <= 0 {
		ve.Add("retry.base_delay must be > 0")
	}
	if cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		ve.Add("retry.max_delay must be >= retry.base_delay")
	}
}

func validateLimits(cfg *Config, ve *ValidationError) {
	if cfg.Limits.RequestsPerMinute <= 0 {
		ve.Add("limits.requests_per_minute must be > 0")
	}
	if cfg.Limits.TokensPerMinute <= 0 {
		ve.Add("limits.tokens_per_minute must be > 0")
	}
	if cfg.Limits.DailyCostUSD <= 0 {
		ve.Add("limits.daily_cost_usd must be > 0")
	}
	if cfg.Limits.MonthlyCostUSD < cfg.Limits.DailyCostUSD {
		ve.Add("limits.monthly_cost_usd must be >= limits.daily_cost_usd")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	switch cfg.Logger.Format {
	case "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop":
	default:
		ve.Add("tracer.exporter %q is invalid (want: stdout, noop)", cfg.Tracer.Exporter)
	}
}
