package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"

	"github.com/qantedservices-cmd/amilou-sub002/core"
)

// NewDB wraps a postgres *sql.DB; columns are mapped through the models' json tags.
func NewDB(db *sql.DB) *sqlx.DB {
	xdb := sqlx.NewDb(db, "postgres")
	xdb.Mapper = reflectx.NewMapperFunc("json", strings.ToLower)
	return xdb
}

func getExec(db *sqlx.DB, svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return db
}
