package db

import (
	"context"
	"fmt"

	"github.com/cozy-creator/medpredict/internal/config"
	"github.com/cozy-creator/medpredict/internal/db/drivers"
)

func NewConnection(ctx context.Context, cfg *config.DBConfig) (drivers.Driver, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is not set")
	}

	switch cfg.Driver {
	case "", config.DBDriverSQLite:
		return drivers.NewSQLiteDriver(ctx, cfg.DSN)
	case config.DBDriverLibSQL:
		return drivers.NewLibSQLDriver(ctx, cfg.DSN)
	case config.DBDriverPG:
		return drivers.NewPGDriver(ctx, cfg.DSN)
	}

	return nil, fmt.Errorf("invalid database driver: %s", cfg.Driver)
}
