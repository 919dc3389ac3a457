package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"stillmind/internal/ratelimit"
	"stillmind/internal/util"
	"stillmind/pkg/storage"
	"stillmind/services/api/internal/app"
	"stillmind/services/api/internal/config"
	"stillmind/services/api/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	media, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		logger.Error("failed to init media store", "err", err)
		os.Exit(1)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:     cfg.DatabaseURL,
		RedisAddr:       cfg.RedisAddr,
		RedisPassword:   cfg.RedisPassword,
		ChatProvider:    cfg.ChatProvider,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		GenerationModel: cfg.GenerationModel,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		Media:           media,
		MediaURLTTL:     time.Duration(cfg.MediaURLTTLMinutes) * time.Minute,
	})
	if err != nil {
		logger.Error("failed to init app", "err", err)
		os.Exit(1)
	}

	chatLimit := cfg.ChatRateLimit
	if chatLimit <= 0 {
		chatLimit = 30
	}
	chatLimiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "stillmind:api:ratelimit:chat", chatLimit, time.Minute)
	if err != nil {
		logger.Error("failed to init chat limiter", "err", err)
		os.Exit(1)
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Error("failed to parse trusted proxies", "err", err)
		os.Exit(1)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		ChatLimiter:    chatLimiter,
		TrustedProxies: trustedProxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("api server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
