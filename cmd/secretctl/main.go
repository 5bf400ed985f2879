// Package main provisions the bootstrap admin secret: it bcrypt-hashes the
// given passphrase and upserts the single admin_secret row. Without that
// row admin self-registration stays disabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/invitebot/backend/config"
	"github.com/invitebot/backend/pkg/database"
	"github.com/invitebot/backend/pkg/utils"
)

func main() {
	secret := flag.String("secret", "", "admin bootstrap passphrase to store (hashed)")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: secretctl -secret <passphrase>")
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	hash, err := utils.HashSecret(*secret)
	if err != nil {
		logger.Fatal("hash secret", zap.Error(err))
	}

	const q = `INSERT INTO admin_secret (id, secret_hash) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET secret_hash = EXCLUDED.secret_hash`
	if _, err := pool.Exec(ctx, q, hash); err != nil {
		logger.Fatal("store secret", zap.Error(err))
	}

	logger.Info("admin secret updated")
}
