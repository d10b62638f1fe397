package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/org/secretshare/internal/api"
	"github.com/org/secretshare/internal/ratelimit"
	"github.com/org/secretshare/internal/secret"
	"github.com/org/secretshare/internal/storage"
	"github.com/org/secretshare/internal/token"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type config struct {
	ListenAddr    string `yaml:"listen_addr"`
	BaseURL       string `yaml:"base_url"`
	TLSCertFile   string `yaml:"tls_cert"`
	TLSKeyFile    string `yaml:"tls_key"`
	DBUrl         string `yaml:"db_url"`
	MigrationsDir string `yaml:"migrations_dir"`
	LogLevel      string `yaml:"log_level"`

	// MasterKey seals share tokens; hex, 32 bytes. Rotating it invalidates
	// every outstanding share link.
	MasterKey string `yaml:"master_key"`

	SecretsLifetimeMinutes int `yaml:"secrets_lifetime_minutes"`
	RevealDelayMs          int `yaml:"reveal_delay_ms"`
	SweepIntervalSeconds   int `yaml:"sweep_interval_seconds"`

	RateLimit struct {
		Enabled              bool   `yaml:"enabled"`
		SecretAttempts       int    `yaml:"secret_attempts"`
		SecretWindowSeconds  int    `yaml:"secret_window_seconds"`
		ClientAttempts       int    `yaml:"client_attempts"`
		ClientWindowSeconds  int    `yaml:"client_window_seconds"`
		RedisAddr            string `yaml:"redis_addr"`
		RedisPassword        string `yaml:"redis_password"`
		RedisDB              int    `yaml:"redis_db"`
	} `yaml:"rate_limit"`
}

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	cfgFile := "config.yaml"
	if v := os.Getenv("SECRETSHARE_CONFIG"); v != "" {
		cfgFile = v
	}

	cfg := config{
		ListenAddr:             ":8080",
		MigrationsDir:          "migrations",
		LogLevel:               "info",
		SecretsLifetimeMinutes: 60,
		SweepIntervalSeconds:   60,
	}
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.SecretAttempts = 5
	cfg.RateLimit.SecretWindowSeconds = 60
	cfg.RateLimit.ClientAttempts = 20
	cfg.RateLimit.ClientWindowSeconds = 3600

	if data, err := os.ReadFile(cfgFile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to parse config")
		}
	} else {
		log.Warn().Str("file", cfgFile).Msg("config file not found, using defaults")
	}

	// Env overrides
	if v := os.Getenv("SECRETSHARE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("SECRETSHARE_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBUrl = v
	}
	if v := os.Getenv("SECRETSHARE_MASTER_KEY"); v != "" {
		cfg.MasterKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RateLimit.RedisAddr = v
	}
	if v := os.Getenv("SECRETS_LIFETIME_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SecretsLifetimeMinutes = n
		}
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.DBUrl == "" {
		log.Fatal().Msg("db_url must be configured (or DATABASE_URL env var)")
	}
	if cfg.MasterKey == "" {
		log.Fatal().Msg("master_key must be configured (or SECRETSHARE_MASTER_KEY env var)")
	}

	codec, err := token.NewCodec(cfg.MasterKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid master key")
	}

	ctx := context.Background()

	// Connect to database
	store, err := storage.NewPostgresStore(ctx, cfg.DBUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()

	// Run migrations
	if err := storage.RunMigrations(cfg.DBUrl, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("migrations applied")

	// Attempt counters: shared redis when configured, else in-process.
	var counters ratelimit.CounterStore
	if cfg.RateLimit.RedisAddr != "" {
		rc, err := ratelimit.NewRedisCounters(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rc.Close()
		counters = rc
		log.Info().Str("addr", cfg.RateLimit.RedisAddr).Msg("using redis attempt counters")
	} else {
		counters = ratelimit.NewMemoryCounters()
	}

	svc := secret.NewService(store, ratelimit.New(counters), codec, secret.Config{
		DefaultTTL:  time.Duration(cfg.SecretsLifetimeMinutes) * time.Minute,
		RevealDelay: time.Duration(cfg.RevealDelayMs) * time.Millisecond,
		RateLimits: secret.RateLimitConfig{
			Enabled:        cfg.RateLimit.Enabled,
			SecretAttempts: cfg.RateLimit.SecretAttempts,
			SecretWindow:   time.Duration(cfg.RateLimit.SecretWindowSeconds) * time.Second,
			ClientAttempts: cfg.RateLimit.ClientAttempts,
			ClientWindow:   time.Duration(cfg.RateLimit.ClientWindowSeconds) * time.Second,
		},
	})

	srv := api.NewServer(svc, api.Config{
		ListenAddr:  cfg.ListenAddr,
		TLSCertFile: cfg.TLSCertFile,
		TLSKeyFile:  cfg.TLSKeyFile,
		BaseURL:     cfg.BaseURL,
	})

	// Sweep expired secrets in the background.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go runExpirySweeper(sweepCtx, store, time.Duration(cfg.SweepIntervalSeconds)*time.Second)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("server started")
	<-quit

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
