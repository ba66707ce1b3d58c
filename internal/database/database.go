// Package database opens the SQL database shared by the metadata store and
// the database search index.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect identifies the SQL flavour of a connection
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// String returns the driver name of the dialect
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	default:
		return "sqlite"
	}
}

// ParseDialect parses a configured database type
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql":
		return Postgres, nil
	default:
		return SQLite, fmt.Errorf("unknown database type %q", s)
	}
}

// DB is a connection pool with its dialect
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open opens and pings the database
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database connection string is empty")
	}

	db, err := sql.Open(dialect.String(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	if dialect == SQLite {
		// SQLite allows a single writer; serialize through one connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}

	logrus.Debugf("Connected to %s database", dialect)
	return &DB{DB: db, Dialect: dialect}, nil
}

// Rebind rewrites ? placeholders for the dialect
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsUniqueViolation reports whether err is a primary key or unique
// constraint violation
func (d Dialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// without extended result codes
			return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
		}
	}

	return false
}
