// Package bootstrap opens the configured storage backend and builds the
// services shared by the API server and the operator console.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrJamesThe3rd/mpesaflow/internal/application"
	appMongo "github.com/MrJamesThe3rd/mpesaflow/internal/application/mongostore"
	appStore "github.com/MrJamesThe3rd/mpesaflow/internal/application/store"
	"github.com/MrJamesThe3rd/mpesaflow/internal/config"
	"github.com/MrJamesThe3rd/mpesaflow/internal/database"
	"github.com/MrJamesThe3rd/mpesaflow/internal/transaction"
	txMongo "github.com/MrJamesThe3rd/mpesaflow/internal/transaction/mongostore"
	txStore "github.com/MrJamesThe3rd/mpesaflow/internal/transaction/store"
)

type Services struct {
	Transactions *transaction.Service
	Applications *application.Service

	close func(context.Context) error
}

func (s *Services) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}

	return s.close(ctx)
}

func Open(ctx context.Context, cfg *config.Config) (*Services, error) {
	sealer, err := application.NewSealer(cfg.Secrets.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("creating sealer: %w", err)
	}

	if !sealer.Enabled() {
		slog.Warn("ENCRYPTION_KEY not set, application secrets are stored unencrypted")
	}

	var (
		txRepo  transaction.Repository
		appRepo application.Repository
		closeFn func(context.Context) error
	)

	switch strings.ToLower(cfg.DB.Driver) {
	case "mongo":
		client, err := database.NewMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}

		db := client.Database(cfg.Mongo.Database)
		txs := txMongo.New(db)
		apps := appMongo.New(db)

		if err := txs.EnsureIndexes(ctx); err != nil {
			return nil, err
		}

		if err := apps.EnsureIndexes(ctx); err != nil {
			return nil, err
		}

		txRepo, appRepo = txs, apps
		closeFn = client.Disconnect
	default:
		db, err := database.New(cfg.ConnectionString())
		if err != nil {
			return nil, err
		}

		if cfg.DB.Migrate {
			if err := database.Migrate(db); err != nil {
				db.Close()
				return nil, err
			}
		}

		txRepo, appRepo = txStore.New(db), appStore.New(db)
		closeFn = func(context.Context) error { return db.Close() }
	}

	return &Services{
		Transactions: transaction.NewService(txRepo),
		Applications: application.NewService(appRepo, sealer),
		close:        closeFn,
	}, nil
}
