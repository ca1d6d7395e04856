package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/varsilias/oracle-chat/internal/api"
	"github.com/varsilias/oracle-chat/internal/buildinfo"
	"github.com/varsilias/oracle-chat/internal/chat"
	"github.com/varsilias/oracle-chat/internal/config"
	"github.com/varsilias/oracle-chat/internal/document"
	"github.com/varsilias/oracle-chat/internal/logging"
	"github.com/varsilias/oracle-chat/internal/middleware"
	"github.com/varsilias/oracle-chat/internal/ollama"
	"github.com/varsilias/oracle-chat/internal/prompt"
	"github.com/varsilias/oracle-chat/internal/tracer"
	"github.com/varsilias/oracle-chat/internal/ui"
)

var (
	serveAddr     string
	serveLogLevel string
	serveLogJSON  bool
	serveProvider string
	serveModel    string
)

// ollama readiness knobs
var (
	ollamaWaitTimeout  = 15 * time.Second
	ollamaWaitInterval = time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat relay and web UI",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen port (overrides ADDR)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "log level: debug|info|warn|error")
	serveCmd.Flags().BoolVar(&serveLogJSON, "log-json", false, "log as JSON")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "upstream: anthropic|ollama|echo")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "upstream model identifier")
}

// applyServeFlags layers explicitly set flags over the loaded config.
func applyServeFlags(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	if f.Changed("addr") {
		c.Addr = serveAddr
	}
	if f.Changed("log-level") {
		c.Log.Level = serveLogLevel
	}
	if f.Changed("log-json") {
		c.Log.JSON = serveLogJSON
	}
	if f.Changed("provider") {
		c.Upstream.Provider = serveProvider
	}
	if f.Changed("model") {
		c.Upstream.Model = serveModel
	}
	return config.Validate(c)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}

	logger, closeLog := logging.NewWithFile(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File)
	defer closeLog()
	logger.Info("build", "version", buildinfo.Version, "commit", buildinfo.Commit, "built_at", buildinfo.BuiltAt)

	ctx := context.Background()
	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("setup tracer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			logger.Warn("tracer shutdown", "err", err)
		}
	}()

	if !cfg.HasCredentials() {
		logger.Warn("ANTHROPIC_API_KEY is not set; chat requests will fail with 500")
	}

	handler, err := newHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server := http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Addr),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// no WriteTimeout: replies stream for as long as the model talks
		IdleTimeout: 120 * time.Second,
	}
	logger.Info("oracle is listening", "port", cfg.Addr, "provider", cfg.Upstream.Provider, "model", cfg.Upstream.Model)

	// Graceful shutdown
	errChan := make(chan error, 1)
	go func() { errChan <- server.ListenAndServe() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			return err
		}
		return nil
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

// newHandler wires the relay, API and UI behind the middleware chain.
func newHandler(ctx context.Context, c *config.Config, logger *slog.Logger) (http.Handler, error) {
	engine := newEngine(ctx, c, logger)

	fetcher := document.NewFetcher(c.Document.ExportBase, &http.Client{Timeout: c.Document.Timeout}, logger)
	relay := chat.NewRelay(logger, fetcher, prompt.New(prompt.DefaultName), engine, chat.RelayOptions{
		DocumentURL: c.Document.URL,
		Model:       c.Upstream.Model,
		MaxTokens:   c.Upstream.MaxTokens,
		Timeout:     c.Upstream.Timeout,
	})

	uih, err := ui.New(logger, ui.Page{
		Name:        prompt.DefaultName,
		Model:       c.Upstream.Model,
		DocumentURL: c.Document.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("ui init: %w", err)
	}
	h := api.NewHandlers(logger, relay, c.HasCredentials)

	mux := chi.NewRouter()
	ui.RegisterRoutes(mux, uih)
	api.RegisterRoutes(mux, h)

	var handler http.Handler = mux
	handler = middleware.Recoverer(logger)(handler)
	handler = middleware.AccessLog(logger)(handler)
	handler = middleware.RequestID()(handler)
	handler = middleware.VersionHeader(logger)(handler)
	return handler, nil
}

// newEngine picks the upstream. An unreachable Ollama falls back to the
// echo engine so the UI stays usable. The breaker wraps Anthropic only.
func newEngine(ctx context.Context, c *config.Config, logger *slog.Logger) chat.Engine {
	var engine chat.Engine
	switch c.Upstream.Provider {
	case config.ProviderOllama:
		oc := ollama.NewClient(c.Upstream.OllamaURL, logger)
		wctx, cancel := context.WithTimeout(ctx, ollamaWaitTimeout)
		err := waitForOllama(wctx, oc, ollamaWaitInterval, logger)
		cancel()
		if err != nil {
			logger.Warn("ollama not reachable; falling back to echo engine", "err", err)
			engine = chat.NewEchoEngine(30 * time.Millisecond)
		} else {
			logger.Info("ollama reachable: enabling ollama engine")
			engine = chat.NewOllamaEngine(oc)
		}
	case config.ProviderEcho:
		engine = chat.NewEchoEngine(30 * time.Millisecond)
	default:
		engine = chat.NewAnthropicEngine(c.Upstream.APIKey, c.Upstream.BaseURL, nil, logger)
		// only the Anthropic engine reports open failures from Stream;
		// the others deliver every error on the channel.
		if c.Breaker.Enabled {
			engine = chat.NewBreakerEngine(engine, c.Breaker.MaxFailures, c.Breaker.Timeout, logger)
		}
	}
	return engine
}

func waitForOllama(ctx context.Context, oc *ollama.Client, interval time.Duration, log *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := oc.Ping(ctx)
		if err == nil {
			return nil
		}
		log.Debug("waiting for ollama", "err", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("ollama not reachable: %w", err)
		case <-ticker.C:
		}
	}
}
