package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"transcribe": {"gemini", "openai"},
	"llm":        {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"},
	"embeddings": {"openai"},
}

// envOverrides maps environment variables onto config fields. Secrets are the
/// usual deployment-time override: a variable that is set and non-empty wins
// over the YAML value.
var envOverrides = map[string]func(*Config, string){
	"VOXNOTE_TELEGRAM_TOKEN":     func(c *Config, v string) { c.Telegram.Token = v },
	"VOXNOTE_DISCORD_TOKEN":      func(c *Config, v string) { c.Discord.Token = v },
	"VOXNOTE_POSTGRES_DSN":       func(c *Config, v string) { c.Archive.PostgresDSN = v },
	"VOXNOTE_TRANSCRIBE_API_KEY": func(c *Config, v string) { c.Providers.Transcribe.APIKey = v },
	"VOXNOTE_LLM_API_KEY":        func(c *Config, v string) { c.Providers.LLM.APIKey = v },
	"VOXNOTE_EMBEDDINGS_API_KEY": func(c *Config, v string) { c.Providers.Embeddings.APIKey = v },
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with environment overrides applied. It is a convenience wrapper
// around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides,
// and validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides overwrites secret-bearing config fields from the process
// environment. Only set, non-empty variables take effect.
func ApplyEnvOverrides(cfg *Config) {
	for name, apply := range envOverrides {
		if v := os.Getenv(name); v != "" {
			apply(cfg, v)
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}

	// Transports
	if cfg.Telegram.Token == "" && cfg.Discord.Token == "" {
		slog.Warn("no telegram or discord token configured; the bot has no transport to receive audio on")
	}
	if cfg.Telegram.Mode != "" && !cfg.Telegram.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("telegram.mode %q is invalid; valid values: polling, webhook", cfg.Telegram.Mode))
	}
	if cfg.Telegram.Mode == ModeWebhook && cfg.Telegram.WebhookURL == "" {
		errs = append(errs, errors.New("telegram.webhook_url is required when telegram.mode is webhook"))
	}

	// Providers
	validateProviderName("transcribe", cfg.Providers.Transcribe.Name)
	validateProviderName("transcribe", cfg.Providers.TranscribeFallback.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	if cfg.Providers.Transcribe.Name == "" {
		errs = append(errs, errors.New("providers.transcribe.name is required"))
	}
	if cfg.Providers.TranscribeFallback.Name != "" &&
		cfg.Providers.TranscribeFallback.Name == cfg.Providers.Transcribe.Name {
		slog.Warn("transcribe fallback uses the same provider as the primary; a provider-wide outage will take out both",
			"provider", cfg.Providers.Transcribe.Name)
	}

	// Pipeline
	if cfg.Pipeline.MaxChunkBytes < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_chunk_bytes %d must not be negative", cfg.Pipeline.MaxChunkBytes))
	}
	if cfg.Pipeline.IdleRelease < 0 {
		errs = append(errs, fmt.Errorf("pipeline.idle_release %s must not be negative", cfg.Pipeline.IdleRelease.Std()))
	}

	// Archive ↔ embeddings
	if cfg.Archive.PostgresDSN == "" && cfg.Providers.Embeddings.Name != "" {
		slog.Warn("providers.embeddings is configured but archive.postgres_dsn is empty; embeddings have nowhere to go")
	}
	if cfg.Archive.PostgresDSN != "" && cfg.Providers.Embeddings.Name != "" && cfg.Archive.EmbeddingDimensions <= 0 {
		slog.Warn("archive.embedding_dimensions is not set; defaulting to 1536")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
