package config

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
  log_format: json
telegram:
  token: "123:abc"
  mode: polling
providers:
  transcribe:
    name: gemini
    api_key: key-1
    model: gemini-2.0-flash
  transcribe_fallback:
    name: openai
    api_key: key-2
pipeline:
  max_chunk_bytes: 19922944
  idle_release: "5m"
  vocabulary:
    - Grafana
    - Apache Kafka
archive:
  postgres_dsn: "postgres://localhost/voxnote"
  embedding_dimensions: 1536
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Telegram.Mode != ModePolling {
		t.Errorf("telegram.mode = %q, want polling", cfg.Telegram.Mode)
	}
	if cfg.Providers.Transcribe.Name != "gemini" {
		t.Errorf("transcribe.name = %q, want gemini", cfg.Providers.Transcribe.Name)
	}
	if cfg.Pipeline.MaxChunkBytes != 19922944 {
		t.Errorf("max_chunk_bytes = %d, want 19922944", cfg.Pipeline.MaxChunkBytes)
	}
	if cfg.Pipeline.IdleRelease.Std() != 5*time.Minute {
		t.Errorf("idle_release = %v, want 5m", cfg.Pipeline.IdleRelease.Std())
	}
	if len(cfg.Pipeline.Vocabulary) != 2 || cfg.Pipeline.Vocabulary[1] != "Apache Kafka" {
		t.Errorf("vocabulary = %v, want [Grafana, Apache Kafka]", cfg.Pipeline.Vocabulary)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := `
providers:
  transcribe:
    name: gemini
serverr:
  listen_addr: ":8080"
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestLoadFromReader_InvalidValuesJoined(t *testing.T) {
	yaml := `
server:
  log_level: loud
  log_format: xml
telegram:
  token: "123:abc"
  mode: webhook
providers:
  transcribe:
    name: gemini
`
	_, err := LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log_level", "log_format", "webhook_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadFromReader_MissingTranscribeProvider(t *testing.T) {
	yaml := `
telegram:
  token: "123:abc"
`
	_, err := LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "providers.transcribe.name") {
		t.Fatalf("err = %v, want missing transcribe provider error", err)
	}
}

func TestLoadFromReader_InvalidDuration(t *testing.T) {
	yaml := `
providers:
  transcribe:
    name: gemini
pipeline:
  idle_release: "five minutes"
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("VOXNOTE_TELEGRAM_TOKEN", "env-token")
	t.Setenv("VOXNOTE_TRANSCRIBE_API_KEY", "env-key")

	cfg := &Config{}
	cfg.Telegram.Token = "yaml-token"
	ApplyEnvOverrides(cfg)

	if cfg.Telegram.Token != "env-token" {
		t.Errorf("telegram.token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Providers.Transcribe.APIKey != "env-key" {
		t.Errorf("transcribe.api_key = %q, want env override", cfg.Providers.Transcribe.APIKey)
	}
}

func TestValidate_NegativeChunkBytes(t *testing.T) {
	cfg := &Config{}
	cfg.Providers.Transcribe.Name = "gemini"
	cfg.Pipeline.MaxChunkBytes = -1

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "max_chunk_bytes") {
		t.Fatalf("err = %v, want max_chunk_bytes error", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/voxnote.yaml")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
}
