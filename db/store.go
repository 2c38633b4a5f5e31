// ABOUTME: Store wraps a database handle with its SQL dialect
// ABOUTME: Rewrites ? placeholders to $n for Postgres so queries are written once
package db

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

var ErrNotFound = errors.New("record not found")

// Store implements the candidate, activity, and sync state ports of the sync pipeline.
// Every query is scoped by organization id.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// NewStore wraps an open database. The caller owns the handle's lifecycle via Close.
func NewStore(database *sql.DB, dialect Dialect) *Store {
	return &Store{db: database, dialect: dialect}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) rebind(query string) string {
	return rebind(s.dialect, query)
}

func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
