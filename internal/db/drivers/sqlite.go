package drivers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const libsqlDriverName = "libsql"

type SQLiteDriver struct {
	db *bun.DB
}

// NewSQLiteDriver opens a local sqlite database through sqliteshim.
func NewSQLiteDriver(ctx context.Context, dsn string) (*SQLiteDriver, error) {
	return openSQLite(ctx, sqliteshim.ShimName, dsn)
}

// NewLibSQLDriver opens a remote libsql (Turso) database; it speaks the
// sqlite dialect.
func NewLibSQLDriver(ctx context.Context, dsn string) (*SQLiteDriver, error) {
	return openSQLite(ctx, libsqlDriverName, dsn)
}

func openSQLite(ctx context.Context, name, dsn string) (*SQLiteDriver, error) {
	sqldb, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}

	// in-memory sqlite is per connection
	if name == sqliteshim.ShimName {
		sqldb.SetMaxOpenConns(1)
	}

	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", name, err)
	}

	return &SQLiteDriver{db: withDebug(bun.NewDB(sqldb, sqlitedialect.New()))}, nil
}

func (d *SQLiteDriver) GetDB() *bun.DB {
	return d.db
}

func (d *SQLiteDriver) Close() error {
	return d.db.Close()
}
