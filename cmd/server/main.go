package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hati/internal/cache"
	"hati/internal/config"
	"hati/internal/db"
	"hati/internal/handlers"
	"hati/internal/ledger"
	"hati/internal/store"
	"hati/internal/websocket"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := newLogger(cfg)

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer database.Close()

	cacheClient := newCache(cfg, logger)
	defer cacheClient.Close()

	members := store.NewMemberStore(database)
	expenses := store.NewExpenseStore(database)
	settlements := store.NewSettlementStore(database)
	agreements := store.NewAgreementStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()
	service := ledger.NewService(txRunner, members, expenses, settlements, agreements, audit, cacheClient, hub)

	handler := handlers.New(txRunner, cfg, logger, members, expenses, settlements, agreements, audit, service, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("hati API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("shutdown error")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger
}

func newCache(cfg config.Config, logger zerolog.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		logger.Info().Msg("REDIS_ADDR not set, using in-process cache")
		return cache.NewMemory()
	}
	client, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, 0)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, falling back to in-process cache")
		return cache.NewMemory()
	}
	return client
}
