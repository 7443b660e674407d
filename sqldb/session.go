package sqldb

import (
	"database/sql"
	"fmt"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// NewSessionStore creates the sessions table of the given driver and returns an scs store on top of it.
func NewSessionStore(driver string, db *sql.DB) (scs.Store, error) {
	switch driver {
	case "mysql":
		db.Exec(`
			CREATE TABLE IF NOT EXISTS sessions (
				token CHAR(43) PRIMARY KEY,
				data BLOB NOT NULL,
				expiry TIMESTAMP(6) NOT NULL
			);`)
		db.Exec(`CREATE INDEX sessions_expiry_idx ON sessions (expiry);`) // fails if it exists
		return mysqlstore.New(db), nil
	case "sqlite3":
		db.Exec(`
			CREATE TABLE IF NOT EXISTS sessions (
				token TEXT PRIMARY KEY,
				data BLOB NOT NULL,
				expiry REAL NOT NULL
			);
			CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
		return sqlite3store.New(db), nil
	default:
		return nil, fmt.Errorf("unknown database backend: %s", driver)
	}
}
