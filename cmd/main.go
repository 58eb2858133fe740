package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cinetaste/internal/analysis"
	"cinetaste/internal/analysis/llm"
	"cinetaste/internal/configuration"
	"cinetaste/internal/feedback"
	"cinetaste/internal/group"
	"cinetaste/internal/journal"
	"cinetaste/internal/match"
	"cinetaste/internal/server"
	"cinetaste/internal/store"
	"cinetaste/internal/taxonomy"
)

// prepareLogger sets up the global slog logger. Takes a string log level
// ("debug", "info", "warn", "error") and installs JSON-formatted output on
// os.Stdout. Unrecognized levels fall back to Info.
func prepareLogger(level string) {
	var logLevel slog.Level

	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)
}

// Failures while loading configuration, opening the vector store, or
// initializing components exit the process with code 1.
func main() {
	configPath := flag.String("config", "/etc/cinetaste/config.yaml", "configuration file")
	flag.Parse()
	config, err := configuration.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Unable to load configuration", "error", err)
		os.Exit(1)
	}
	prepareLogger(config.Logger.Level)

	appCtx, appCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer appCancel()

	tax := taxonomy.Load(config.Taxonomy.Path)

	vectors, err := store.Open(config.Store.Path)
	if err != nil {
		slog.Error("Unable to open vector store", "error", err)
		os.Exit(1)
	}
	defer vectors.Close()

	var analyzer analysis.Analyzer
	if config.Analyzer.Enabled {
		analyzer = llm.New(config.Analyzer.APIKey, config.Analyzer.Client)
	}
	builder := analysis.NewBuilder(tax, analyzer, vectors,
		config.Engine.HintMinFraction, config.Engine.HintScoreThreshold)

	matcher := match.NewMatcher(*config.Engine.Weights)

	var leveler group.Leveler = config.Engine.Levels.Thresholds
	if config.Engine.Levels.Rules != "" {
		rules, err := group.LoadLevelRules(config.Engine.Levels.Rules)
		if err != nil {
			slog.Error("Unable to load level rules", "error", err)
			os.Exit(1)
		}
		leveler = rules
	}
	aggregator := group.NewAggregator(matcher, leveler)

	updater := feedback.NewUpdater(*config.Engine.Learning, builder)

	var recorder journal.Recorder = journal.Nop{}
	if config.Journal.File != "" {
		j := journal.New(config.Journal.File, config.Journal.Size, config.Journal.Amount)
		defer j.Close()
		recorder = j
	}

	router := server.NewApiV1Router(tax, builder, matcher, aggregator, updater, vectors, recorder)
	srv := server.NewServer(config.Server.Address, router)
	go srv.ListenAndServe()
	slog.Info("Server listening " + config.Server.Address)
	<-appCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second*10)
	defer shutdownCancel()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		slog.Error("Server shutdown", "error", err)
	}
	slog.Info("Server stopped")
}
