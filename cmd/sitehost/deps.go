package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/sagarc03/sitehost"
	"github.com/sagarc03/sitehost/blobstore"
	"github.com/sagarc03/sitehost/config"
	"github.com/sagarc03/sitehost/database"
	"github.com/sagarc03/sitehost/identity"
)

// openDatabase connects to the registry. Only serve and migrate create
// tables; the other commands expect an existing schema.
func openDatabase(ctx context.Context, cfg *config.Config, migrate bool) (database.Database, error) {
	db, err := database.Open(ctx, cfg.Database.Config, migrate)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Debug("connected to database", "type", cfg.Database.Type)
	return db, nil
}

func openStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	store, err := blobstore.Open(ctx, cfg.Storage.Config)
	if err != nil {
		return nil, fmt.Errorf("open content store: %w", err)
	}
	slog.Debug("opened content store", "backend", cfg.Storage.Backend)
	return store, nil
}

func newSiteService(cfg *config.Config, db database.Database, store sitehost.ContentStore, recorder sitehost.Recorder) (*sitehost.SiteService, error) {
	service, err := sitehost.NewSiteService(db.GetSiteRegistry(), store, sitehost.ServiceConfig{
		BaseURL:        cfg.Server.BaseURL,
		CleanupTimeout: cfg.Service.CleanupTimeout,
		Recorder:       recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("create site service: %w", err)
	}
	return service, nil
}

// newAccountService builds the local identity provider. Commands that never
// issue sessions may run without a configured secret; they get a random
// one that dies with the process.
func newAccountService(cfg *config.Config, db database.Database) (*sitehost.AccountService, error) {
	secret := cfg.Auth.SessionSecret
	if secret == "" {
		var err error
		if secret, err = throwawaySecret(); err != nil {
			return nil, err
		}
	}

	keys, err := identity.NewKeyring(secret, cfg.Auth.Keys)
	if err != nil {
		return nil, fmt.Errorf("create keyring: %w", err)
	}

	provider, err := identity.NewLocalProvider(db.GetUserRepo(), keys, identity.Config{
		SessionTTL:        cfg.Auth.SessionTTL,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
	})
	if err != nil {
		return nil, fmt.Errorf("create identity provider: %w", err)
	}

	return sitehost.NewAccountService(provider, db.GetRoleStore()), nil
}

func throwawaySecret() (string, error) {
	b := make([]byte, identity.MinSecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
