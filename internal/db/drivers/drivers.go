package drivers

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
)

type Driver interface {
	GetDB() *bun.DB
	Close() error
}

// withDebug logs queries when BUNDEBUG=1 (or 2 for verbose) is set.
func withDebug(db *bun.DB) *bun.DB {
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.FromEnv("BUNDEBUG")))
	return db
}
