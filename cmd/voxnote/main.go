// Command voxnote runs the voice transcription bot: Telegram and Discord
// transports, the chunking/retry/normalization pipeline, and an admin HTTP
// server with metrics and health probes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxnote/voxnote/internal/app"
	"github.com/voxnote/voxnote/internal/archive"
	"github.com/voxnote/voxnote/internal/config"
	discordbot "github.com/voxnote/voxnote/internal/discord"
	"github.com/voxnote/voxnote/internal/health"
	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/internal/pipeline"
	"github.com/voxnote/voxnote/internal/telegram"
	"github.com/voxnote/voxnote/internal/transcript"
	"github.com/voxnote/voxnote/internal/transcript/llmrefine"
	"github.com/voxnote/voxnote/pkg/provider/embeddings"
	oaembed "github.com/voxnote/voxnote/pkg/provider/embeddings/openai"
	"github.com/voxnote/voxnote/pkg/provider/llm"
	"github.com/voxnote/voxnote/pkg/provider/llm/anyllm"
	"github.com/voxnote/voxnote/pkg/provider/transcribe"
	"github.com/voxnote/voxnote/pkg/provider/transcribe/gemini"
	oatranscribe "github.com/voxnote/voxnote/pkg/provider/transcribe/openai"
)

// version is set via -ldflags at release build time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// A .env file is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxnote: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxnote: %v\n", err)
		}
		return 1
	}

	slog.SetDefault(newLogger(cfg.Server.LogLevel, cfg.Server.LogFormat))
	slog.Info("voxnote starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxnote",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Transcription chain ───────────────────────────────────────────────────
	idle := cfg.Pipeline.IdleRelease.Std()
	primary, err := newManager(reg, cfg.Providers.Transcribe, idle, metrics)
	if err != nil {
		slog.Error("failed to configure transcription provider", "err", err)
		return 1
	}
	defer primary.Close()

	entries := []app.ChainEntry{{Name: cfg.Providers.Transcribe.Name, Manager: primary}}
	if name := cfg.Providers.TranscribeFallback.Name; name != "" {
		fallback, err := newManager(reg, cfg.Providers.TranscribeFallback, idle, metrics)
		if err != nil {
			slog.Error("failed to configure fallback transcription provider", "err", err)
			return 1
		}
		defer fallback.Close()
		entries = append(entries, app.ChainEntry{Name: name, Manager: fallback})
		slog.Info("transcription fallback enabled", "provider", name)
	}
	chain := app.BuildChain(metrics, entries[0], entries[1:]...)

	assemblerOpts := []pipeline.AssemblerOption{pipeline.WithMetrics(metrics)}
	if cfg.Pipeline.MaxChunkBytes > 0 {
		assemblerOpts = append(assemblerOpts, pipeline.WithMaxChunkBytes(cfg.Pipeline.MaxChunkBytes))
	}
	assembler := pipeline.NewAssembler(chain, assemblerOpts...)

	// ── Optional service layers ───────────────────────────────────────────────
	svcOpts := []app.ServiceOption{
		app.WithServiceMetrics(metrics),
		app.WithVocabulary(cfg.Pipeline.Vocabulary),
	}
	if len(cfg.Pipeline.Vocabulary) > 0 {
		svcOpts = append(svcOpts, app.WithCorrector(transcript.NewCorrector(cfg.Pipeline.Vocabulary)))
	}
	if cfg.Providers.LLM.Name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			slog.Error("failed to create refinement provider", "err", err)
			return 1
		}
		svcOpts = append(svcOpts, app.WithRefiner(llmrefine.New(p)))
		slog.Info("transcript refinement enabled", "provider", cfg.Providers.LLM.Name)
	}

	var store *archive.Store
	if cfg.Archive.PostgresDSN != "" {
		storeOpts := []archive.Option{}
		if cfg.Archive.EmbeddingDimensions > 0 {
			storeOpts = append(storeOpts, archive.WithEmbeddingDimensions(cfg.Archive.EmbeddingDimensions))
		}
		if cfg.Providers.Embeddings.Name != "" {
			emb, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
			if err != nil {
				slog.Error("failed to create embeddings provider", "err", err)
				return 1
			}
			storeOpts = append(storeOpts, archive.WithEmbedder(emb))
		}
		store, err = archive.New(ctx, cfg.Archive.PostgresDSN, storeOpts...)
		if err != nil {
			slog.Error("failed to open transcript archive", "err", err)
			return 1
		}
		defer store.Close()
		svcOpts = append(svcOpts, app.WithArchiver(store))
		slog.Info("transcript archive enabled")
	}

	svc := app.NewService(assembler, svcOpts...)

	// ── Transports and admin server ───────────────────────────────────────────
	g, ctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	var checkers []health.Checker
	if store != nil {
		checkers = append(checkers, health.Checker{Name: "archive", Check: store.Ping})
	}

	if cfg.Telegram.Token != "" {
		client := telegram.NewClient(cfg.Telegram.Token)
		bot := telegram.NewBot(client, svc)
		checkers = append(checkers, health.Checker{
			Name: "telegram",
			Check: func(ctx context.Context) error {
				_, err := client.GetMe(ctx)
				return err
			},
		})

		if cfg.Telegram.Mode == config.ModeWebhook {
			mux.Handle("POST /telegram/webhook", telegram.WebhookHandler(bot))
			if err := client.SetWebhook(ctx, cfg.Telegram.WebhookURL); err != nil {
				slog.Error("failed to register telegram webhook", "err", err)
				return 1
			}
			slog.Info("telegram webhook registered", "url", cfg.Telegram.WebhookURL)
		} else {
			g.Go(func() error { return bot.Run(ctx) })
		}
	}

	if cfg.Discord.Token != "" {
		bot, err := discordbot.New(cfg.Discord.Token, svc)
		if err != nil {
			slog.Error("failed to create discord bot", "err", err)
			return 1
		}
		g.Go(func() error { return bot.Run(ctx) })
	}

	health.New(checkers...).Register(mux)

	if cfg.Server.ListenAddr != "" {
		srv := &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           observe.Middleware(metrics)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("admin server listening", "addr", cfg.Server.ListenAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	slog.Info("voxnote ready — press Ctrl+C to shut down")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newManager wraps the registry factory for entry in an idle-released handle
// manager. Provider creation is deferred until the first submission needs it.
func newManager(reg *config.Registry, entry config.ProviderEntry, idle time.Duration, metrics *observe.Metrics) (*app.Manager, error) {
	if entry.Name == "" {
		return nil, errors.New("no transcription provider configured")
	}
	opts := []app.ManagerOption{app.WithManagerMetrics(metrics)}
	if idle > 0 {
		opts = append(opts, app.WithIdleWindow(idle))
	}
	return app.NewManager(entry.Name, func(ctx context.Context) (transcribe.Provider, error) {
		return reg.CreateTranscribe(ctx, entry)
	}, opts...), nil
}

// registerBuiltinProviders wires the provider factories that ship with
// voxnote into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Transcription ─────────────────────────────────────────────────────────

	reg.RegisterTranscribe("gemini", func(ctx context.Context, entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []gemini.Option
		if entry.Model != "" {
			opts = append(opts, gemini.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(entry.BaseURL))
		}
		return gemini.New(ctx, entry.APIKey, opts...)
	})

	reg.RegisterTranscribe("openai", func(_ context.Context, entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []oatranscribe.Option
		if entry.BaseURL != "" {
			opts = append(opts, oatranscribe.WithBaseURL(entry.BaseURL))
		}
		return oatranscribe.New(entry.APIKey, entry.Model, opts...)
	})

	// ── LLM refinement ────────────────────────────────────────────────────────
	// The hosted providers all share the same pattern: optional APIKey +
	// optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini", "deepseek", "mistral", "groq",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})
}

// newLogger builds the process logger from config.
func newLogger(level config.LogLevel, format config.LogFormat) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
