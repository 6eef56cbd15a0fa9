package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/tourbook/tourbook-server/internal/config"
	"github.com/tourbook/tourbook-server/internal/logger"
	"github.com/tourbook/tourbook-server/internal/store"
	"github.com/tourbook/tourbook-server/internal/store/badgerstore"
	"github.com/tourbook/tourbook-server/internal/store/mongostore"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured document store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Store.Driver {
	case config.DriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		db, err := mongostore.Connect(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info("Database initialized", "driver", "mongo", "database", cfg.Store.MongoDatabase)
		return &StoreHandle{Store: db}, nil

	default:
		dbPath := filepath.Join(cfg.Data.BasePath, "db")
		db, err := badgerstore.Open(dbPath, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info("Database initialized", "driver", "badger", "path", dbPath)
		return &StoreHandle{Store: db}, nil
	}
}
