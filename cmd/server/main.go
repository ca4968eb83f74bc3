package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oishi/internal/config"
	"oishi/internal/infra"
	"oishi/internal/realtime"
	"oishi/internal/repository"
	"oishi/internal/router"
	"oishi/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	if err := infra.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := infra.NewBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init blob storage")
	}

	// Worker handlers are wired here (composition root) so the pool has
	// access to every infrastructure dependency.
	pedidoRepo := repository.NewPedidoRepository(db)
	pool := worker.NewPool(rdb)
	pool.Register(worker.QueueTicket, worker.NewTicketWorker(pedidoRepo, store, realtime.NewPublisher(rdb), cfg.RestaurantName, cfg.TicketWidthMM))
	if cfg.NotificationsEnabled() {
		pool.Register(worker.QueueEmail, worker.NewEmailWorker(infra.NewMailer(cfg), pedidoRepo, cfg.NotifyEmail, cfg.RestaurantName, cfg.TicketWidthMM))
	}
	pool.Start(ctx, cfg.WorkerPoolSize)

	r := router.New(ctx, cfg, router.Deps{DB: db, RDB: rdb, Store: store})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: /v1/realtime/stream holds the response open
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("%s backend listening on :%d", cfg.RestaurantName, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	_ = rdb.Close()
	log.Info().Msg("server exited")
}
