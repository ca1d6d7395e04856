package config

import (
	"fmt"
	"strings"
)

// ValidationError collects every problem found in a Config.
type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Error() string {
	return "invalid config: " + strings.Join(v.Problems, "; ")
}

func (v *ValidationError) add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func Validate(cfg *Config) error {
	ve := &ValidationError{}

	switch cfg.Upstream.Provider {
	case ProviderAnthropic, ProviderOllama, ProviderEcho:
	default:
		ve.add("upstream.provider %q is not one of anthropic, ollama, echo", cfg.Upstream.Provider)
	}
	if cfg.Upstream.Model == "" {
		ve.add("upstream.model is required")
	}
	if cfg.Upstream.MaxTokens <= 0 {
		ve.add("upstream.max_tokens must be positive, got %d", cfg.Upstream.MaxTokens)
	}
	if cfg.Upstream.Timeout < 0 {
		ve.add("upstream.timeout must not be negative")
	}
	if cfg.Document.URL == "" {
		ve.add("document.url is required")
	}
	if cfg.Document.ExportBase == "" {
		ve.add("document.export_base is required")
	}
	if cfg.Breaker.Enabled && cfg.Breaker.MaxFailures == 0 {
		ve.add("breaker.max_failures must be positive when the breaker is enabled")
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.add("tracer.exporter %q is not supported", cfg.Tracer.Exporter)
	}

	if len(ve.Problems) > 0 {
		return ve
	}
	return nil
}
