package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stillmind/internal/util"
	"stillmind/pkg/queue"
	"stillmind/services/billing/internal/app"
	"stillmind/services/billing/internal/config"
	"stillmind/services/billing/internal/server"
	"stillmind/services/billing/internal/webhook"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	signature, err := webhook.NewSignature(cfg.WebhookSecret, time.Duration(cfg.WebhookToleranceSeconds)*time.Second)
	if err != nil {
		logger.Error("failed to init signature verifier", "err", err)
		os.Exit(1)
	}

	stream := cfg.EventStream
	if stream == "" {
		stream = "stillmind:billing:events"
	}
	eventQueue, err := queue.NewRedisEventQueue(queue.RedisEventQueueConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   stream,
	})
	if err != nil {
		logger.Error("failed to init event queue", "err", err)
		os.Exit(1)
	}

	appCore, err := app.New(app.Config{DatabaseURL: cfg.DatabaseURL})
	if err != nil {
		logger.Error("failed to init app", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	eventQueue.Start(ctx, concurrency, appCore.Apply)

	httpServer := server.New(server.Config{
		Signature: signature,
		Queue:     eventQueue,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("billing server listening", "addr", addr, "stream", stream)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
