package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"stillmind/internal/credential"
	"stillmind/internal/ratelimit"
	"stillmind/internal/util"
	"stillmind/pkg/storage"
	"stillmind/services/admin/internal/app"
	"stillmind/services/admin/internal/config"
	"stillmind/services/admin/internal/server"
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
		DatabaseURL: cfg.DatabaseURL,
		TokenSecret: cfg.TokenSecret,
		TokenIssuer: cfg.TokenIssuer,
		TokenTTL:    time.Duration(cfg.TokenTTLHours) * time.Hour,
		Media:       media,
	})
	if err != nil {
		logger.Error("failed to init app", "err", err)
		os.Exit(1)
	}

	if cfg.BootstrapUsername != "" && cfg.BootstrapPassword != "" {
		if err := appCore.EnsureAdmin(cfg.BootstrapUsername, cfg.BootstrapPassword); err != nil {
			logger.Error("failed to bootstrap admin account", "err", err)
			os.Exit(1)
		}
	}

	verifier, err := credential.NewSignedToken(cfg.TokenSecret, cfg.TokenIssuer, credential.DefaultLeeway)
	if err != nil {
		logger.Error("failed to init token verifier", "err", err)
		os.Exit(1)
	}

	loginLimit := cfg.LoginRateLimit
	if loginLimit <= 0 {
		loginLimit = 10
	}
	loginLimiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "stillmind:admin:ratelimit:login", loginLimit, time.Minute)
	if err != nil {
		logger.Error("failed to init login limiter", "err", err)
		os.Exit(1)
	}

	maxUpload := int64(cfg.MaxUploadMB)
	if maxUpload <= 0 {
		maxUpload = 256
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Error("failed to parse trusted proxies", "err", err)
		os.Exit(1)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Verifier:       verifier,
		LoginLimiter:   loginLimiter,
		MaxUploadBytes: maxUpload << 20,
		TrustedProxies: trustedProxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("admin server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
