package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver, for single-host deployments and tests
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// Dialect selects the SQL flavour the ledger speaks.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDatabaseURL picks the driver from the URL. SQLite URLs are
// sqlite://<path> or sqlite::memory:; postgres:// URLs and lib/pq key=value
// DSNs ("host=... dbname=...") go to PostgreSQL. Other URL schemes are rejected.
func ParseDatabaseURL(databaseURL string) (Dialect, string, error) {
	switch {
	case strings.TrimSpace(databaseURL) == "":
		return "", "", fmt.Errorf("database URL is empty")
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return DialectSQLite, strings.TrimPrefix(databaseURL, "sqlite://"), nil
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return DialectSQLite, strings.TrimPrefix(databaseURL, "sqlite:"), nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, databaseURL, nil
	case strings.Contains(databaseURL, "://"):
		return "", "", fmt.Errorf("unsupported database URL scheme in %q", redact(databaseURL))
	default:
		return DialectPostgres, databaseURL, nil
	}
}

// Open connects to the database named by databaseURL and pings it.
func Open(databaseURL string) (*sql.DB, Dialect, error) {
	dialect, dsn, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database connection: %w", err)
	}

	if dialect == DialectSQLite {
		// One writer at a time; also keeps :memory: databases on a single connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
		db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	}

	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}

	return db, dialect, nil
}

// rebind rewrites ? placeholders into $N for PostgreSQL.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
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

func redact(databaseURL string) string {
	if at := strings.LastIndex(databaseURL, "@"); at >= 0 {
		if scheme := strings.Index(databaseURL, "://"); scheme >= 0 && scheme < at {
			return databaseURL[:scheme+3] + "***" + databaseURL[at:]
		}
	}
	return databaseURL
}
