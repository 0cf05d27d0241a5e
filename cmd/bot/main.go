// Package main is the entry point for the club bot. It reads configuration
// from the environment, builds the dependency graph and runs the Telegram
// poller, the state janitor and the ops HTTP server until SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/heartpipes/clubbot/internal/admission"
	"github.com/heartpipes/clubbot/internal/broadcast"
	"github.com/heartpipes/clubbot/internal/conversation"
	"github.com/heartpipes/clubbot/internal/repository/sqlite"
	"github.com/heartpipes/clubbot/internal/server"
	"github.com/heartpipes/clubbot/internal/transport/telegram"
)

type config struct {
	BotToken       string        `env:"BOT_TOKEN,required"`
	DBPath         string        `env:"DB_PATH" envDefault:"data/clubbot.db"`
	OperatorIDs    []int64       `env:"OPERATOR_IDS" envSeparator:","`
	HTTPPort       int           `env:"HTTP_PORT" envDefault:"8080"`
	BroadcastDelay time.Duration `env:"BROADCAST_DELAY" envDefault:"100ms"`
	StateTTL       time.Duration `env:"STATE_TTL" envDefault:"30m"`
	StateSweep     time.Duration `env:"STATE_SWEEP" envDefault:"5m"`
	LogLevel       slog.Level    `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if len(cfg.OperatorIDs) == 0 {
		logger.Warn("OPERATOR_IDS not set, operator commands are disabled")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(cfg.DBPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	client, err := telegram.NewClient(cfg.BotToken, logger)
	if err != nil {
		logger.Error("failed to connect to Telegram", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctrl := admission.NewController(db, db, logger)
	dispatcher := broadcast.NewDispatcher(db, db, client, cfg.BroadcastDelay, logger)
	states := conversation.NewStore(cfg.StateTTL)
	engine := conversation.NewEngine(ctrl, dispatcher, db, db, states, cfg.OperatorIDs, logger)
	poller := telegram.NewPoller(client, engine, db, logger)
	ops := server.New(db, db, db, db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go states.RunJanitor(ctx, cfg.StateSweep, logger)

	opsDone := make(chan struct{})
	go func() {
		defer close(opsDone)
		if err := ops.Run(ctx, cfg.HTTPPort); err != nil {
			logger.Error("ops server stopped", slog.String("error", err.Error()))
		}
	}()

	logger.Info("bot starting",
		slog.Int("operators", len(cfg.OperatorIDs)),
		slog.String("db", cfg.DBPath),
	)
	poller.Run(ctx)

	<-opsDone
	logger.Info("shutdown complete")
}
