package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dagbolade/mcp-guard/internal/mcp"
	"github.com/dagbolade/mcp-guard/internal/observe"
	"github.com/dagbolade/mcp-guard/internal/policy"
	"github.com/dagbolade/mcp-guard/internal/proxy"
	"github.com/dagbolade/mcp-guard/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	setupLogger(cfg.Log.Level)

	log.Info().Str("mode", cfg.Policy.Mode).Str("fail_mode", cfg.Policy.FailMode).
		Msg("starting MCP guard proxy")

	ctx, cancel := setupSignalHandler()
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("application error")
	}

	log.Info().Msg("proxy stopped")
}

func run(ctx context.Context, cfg server.Config) error {
	evaluator := buildEvaluator(cfg.Policy)
	gate := policy.NewGate(evaluator, policy.FailMode(cfg.Policy.FailMode))

	var watcher *policy.SourceWatcher
	if cfg.Policy.Mode == server.ModeCLI {
		w, err := policy.NewSourceWatcher(cfg.Policy.Path)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Policy.Path).
				Msg("policy source watcher unavailable")
		} else {
			watcher = w
			defer func() {
				if err := watcher.Close(); err != nil {
					log.Warn().Err(err).Msg("failed to close policy watcher")
				}
			}()
		}
	}

	forwarder, err := proxy.NewForwarder(cfg.Proxy.Upstream, time.Duration(cfg.Proxy.TimeoutSec)*time.Second)
	if err != nil {
		return err
	}

	classifier := mcp.NewClassifier(cfg.MCP.ExtraMethodNames()...)
	pipeline := proxy.NewPipeline(classifier, gate, forwarder, observe.NewLogger())

	srv := server.New(cfg, pipeline, healthFunc(cfg, watcher))

	return runServer(ctx, srv)
}

func buildEvaluator(cfg server.PolicyConfig) policy.Evaluator {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second

	if cfg.Mode == server.ModeServer {
		log.Info().Str("url", cfg.URL).Msg("using remote policy evaluation")
		return policy.NewHTTPEvaluator(cfg.URL, timeout)
	}

	log.Info().Str("path", cfg.Path).Str("query", cfg.Query).
		Msg("using local policy evaluation")
	return policy.NewCLIEvaluator(cfg.Path, cfg.Query, timeout)
}

func healthFunc(cfg server.Config, watcher *policy.SourceWatcher) server.HealthFunc {
	return func() server.Health {
		available := true
		if watcher != nil {
			available = watcher.Available()
		}
		return server.Health{
			Status:          "healthy",
			PolicyMode:      cfg.Policy.Mode,
			FailMode:        cfg.Policy.FailMode,
			PolicyAvailable: available,
		}
	}
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	return ctx, cancel
}

func runServer(ctx context.Context, srv *server.Server) error {
	errChan := make(chan error, 1)

	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}
