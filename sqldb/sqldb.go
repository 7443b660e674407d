// Package sqldb implements the storage interfaces of package core with database/sql.
//
// Queries use "?" placeholders, so it works with sqlite3 and mysql. Tables are created on construction.
package sqldb

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// preparer prepares statements until the first error occurs.
type preparer struct {
	db  *sql.DB
	err error
}

func (p *preparer) prepare(query string) *sql.Stmt {
	if p.err != nil {
		return nil
	}
	stmt, err := p.db.Prepare(query)
	if err != nil {
		p.err = fmt.Errorf("preparing %q: %w", query, err)
	}
	return stmt
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// placeholders returns "?, ?, ?" for n = 3.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// unix converts a time to a unix timestamp. The zero time is stored as 0.
func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
