// whispersd is the whispers server process: load config from the
// environment, pick a store backend, wire the app and listen.
package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/panyam/whispers"
	"github.com/panyam/whispers/stores"
	whispersgorm "github.com/panyam/whispers/stores/gorm"
	"github.com/panyam/whispers/web"
)

func main() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := whispers.LoadConfig()

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("store init failed", "err", err)
		os.Exit(1)
	}

	sessions := whispers.NewSessions(cfg.SessionSecret, cfg.SecureCookies)
	sessions.TimeoutSeconds = cfg.SessionTimeoutSeconds

	app := web.New(cfg, store, sessions, logger)

	logger.Info("server started", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, app.Handler()); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func openStore(cfg *whispers.Config, logger *slog.Logger) (whispers.AccountStore, error) {
	if cfg.DatabaseDSN == "" {
		logger.Info("no database configured, using filesystem store", "dir", cfg.DataDir)
		return stores.NewFSAccountStore(cfg.DataDir), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := whispersgorm.AutoMigrate(db); err != nil {
		return nil, err
	}
	return whispersgorm.NewAccountStore(db), nil
}
