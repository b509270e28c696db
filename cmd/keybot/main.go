// Command keybot runs the key-issuance service: the chat-platform gateway
// session with its command and panel dispatch, the payment webhook receiver,
// liveness and metrics endpoints, and the periodic channel keepalive sweep.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/nexussoftworks/go-keybot/internal/bot"
	"github.com/nexussoftworks/go-keybot/internal/catalog"
	"github.com/nexussoftworks/go-keybot/internal/chat"
	"github.com/nexussoftworks/go-keybot/internal/config"
	"github.com/nexussoftworks/go-keybot/internal/domain"
	"github.com/nexussoftworks/go-keybot/internal/gateway"
	httpapi "github.com/nexussoftworks/go-keybot/internal/http"
	"github.com/nexussoftworks/go-keybot/internal/keepalive"
	"github.com/nexussoftworks/go-keybot/internal/keycache"
	"github.com/nexussoftworks/go-keybot/internal/observability"
	"github.com/nexussoftworks/go-keybot/internal/ratelimit"
	"github.com/nexussoftworks/go-keybot/internal/repo"
	"github.com/nexussoftworks/go-keybot/internal/services"
	"github.com/nexussoftworks/go-keybot/internal/signing"
	"github.com/nexussoftworks/go-keybot/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// issuanceRepoShim adapts the repo free functions to the audit-trail
// interface expected by the KeyService.
type issuanceRepoShim struct{}

func (issuanceRepoShim) RecordIssuance(ctx context.Context, db *gorm.DB, rec domain.Issuance) (*domain.Issuance, error) {
	return repo.RecordIssuance(ctx, db, rec)
}

func main() {
	// Missing .env is fine in containerized deployments.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("sqlite open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("sqlite migration failed")
	}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("catalog load failed")
	}
	if cat.Len() == 0 {
		log.Warn().Msg("service catalog is empty; key issuance is disabled until one is configured")
	}

	httpc := &http.Client{Timeout: cfg.HTTPTimeout}
	client := chat.NewClient(cfg.Chat.APIBaseURL, cfg.Chat.BotToken, cfg.Chat.GuildID, httpc, log.Logger)

	keys := &services.KeyService{
		Catalog:      cat,
		Signer:       signing.New([]byte(cfg.SigningSecret), cfg.KeyTier),
		HTTP:         httpc,
		Notifier:     client,
		Cache:        keycache.NewMemory(),
		DB:           db,
		Repo:         issuanceRepoShim{},
		LogChannelID: cfg.Chat.LogChannelID,
		Duration:     cfg.KeyDuration,
		Log:          log.Logger,
	}

	payments := &services.PaymentService{
		Config:        cfg.Payment,
		HTTP:          httpc,
		Directory:     client,
		Notifier:      client,
		LogChannelID:  cfg.Chat.LogChannelID,
		PremiumRoleID: cfg.Chat.PremiumRoleID,
		Log:           log.Logger,
	}

	sweeper := &keepalive.Sweeper{
		Directory: client,
		Notifier:  client,
		Interval:  cfg.KeepaliveInterval,
		Log:       log.Logger,
	}
	go sweeper.Run(ctx)

	b := &bot.Bot{
		StaffRoleID: cfg.Chat.StaffRoleID,
		Catalog:     cat,
		Keys:        keys,
		Payments:    payments,
		Bypass:      &services.BypassService{Config: cfg.Bypass, HTTP: httpc, Log: log.Logger},
		Analytics:   &services.AnalyticsService{Config: cfg.Analytics, HTTP: httpc, Log: log.Logger},
		Sweeper:     sweeper,
		Directory:   client,
		Notifier:    client,
		DB:          db,

		Cooldown:       ratelimit.NewCooldown(cfg.CommandCooldown),
		BypassCooldown: ratelimit.NewCooldown(cfg.Bypass.Cooldown),
		BypassCfg:      cfg.Bypass,

		HTTP: httpc,
		Log:  log.Logger,
	}

	gw := &gateway.Client{
		Token:      cfg.Chat.BotToken,
		APIBaseURL: cfg.Chat.APIBaseURL,
		Dispatch:   b,
		HTTPC:      httpc,
		Log:        log.Logger,
	}
	go func() {
		if err := gw.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("gateway authentication failed")
		}
	}()

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	httpapi.RegisterRoutes(router, db, payments, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("keybot listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// loadCatalog reads the service catalog from path, or returns an empty
// catalog when no path is configured.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.New(nil)
	}
	return catalog.LoadFile(path)
}
