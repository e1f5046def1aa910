// Package db picks the persistence backend named in the configuration.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/plusishibba-design/barcode-scanner-cloud/internal/config"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/products"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/infra/db/memory"
	mysqlp "github.com/plusishibba-design/barcode-scanner-cloud/internal/infra/db/mysql"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/infra/db/postgres"
)

// Stores groups the repositories of one backend. DB is nil for the memory
// backend.
type Stores struct {
	Scans        scans.Repository
	Products     products.Repository
	ImportErrors products.ImportErrorLog
	DB           *sql.DB
}

func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Open connects to the configured backend and ensures its schema.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &Stores{
			Scans:        postgres.NewScanRepository(db),
			Products:     postgres.NewProductRepository(db),
			ImportErrors: postgres.NewImportErrorRepository(db),
			DB:           db,
		}, nil

	case config.DriverMySQL:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		if err := mysqlp.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &Stores{
			Scans:        mysqlp.NewScanRepository(db),
			Products:     mysqlp.NewProductRepository(db),
			ImportErrors: mysqlp.NewImportErrorRepository(db),
			DB:           db,
		}, nil

	case config.DriverMemory:
		store := memory.NewStore()
		return &Stores{
			Scans:        store,
			Products:     store,
			ImportErrors: store.ImportErrors(),
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}
