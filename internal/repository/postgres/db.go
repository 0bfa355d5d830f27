package postgres

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PoolOptions sizes the connection pool and sets per-session timeouts.
type PoolOptions struct {
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnectTimeoutSecs int
	StatementTimeoutMs int
}

// Open returns a lazily-connecting pool for dsn. The pool is shared by all
// requests; each transaction checks out one connection for its duration.
func Open(dsn string, opts PoolOptions) (*sql.DB, error) {
	db, err := sql.Open("postgres", WithSessionTimeouts(dsn, opts.ConnectTimeoutSecs, opts.StatementTimeoutMs))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return db, nil
}

// WithSessionTimeouts adds connect_timeout and a statement_timeout session
// option to dsn unless they are already present. URL DSNs get query
// parameters; keyword DSNs ("host=db user=app") get space separated pairs.
func WithSessionTimeouts(dsn string, connectTimeoutSecs, statementTimeoutMs int) string {
	var params [][2]string
	if connectTimeoutSecs > 0 && !strings.Contains(dsn, "connect_timeout") {
		params = append(params, [2]string{"connect_timeout", fmt.Sprintf("%d", connectTimeoutSecs)})
	}
	if statementTimeoutMs > 0 && !strings.Contains(dsn, "statement_timeout") {
		params = append(params, [2]string{"options", fmt.Sprintf("-c statement_timeout=%d", statementTimeoutMs)})
	}
	if len(params) == 0 {
		return dsn
	}

	if !isURLDSN(dsn) {
		for _, p := range params {
			dsn = strings.TrimSpace(dsn) + " " + p[0] + "='" + p[1] + "'"
		}
		return strings.TrimSpace(dsn)
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range params {
		dsn += sep + p[0] + "=" + url.QueryEscape(p[1])
		sep = "&"
	}
	return dsn
}

func isURLDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// HostOf returns the host[:port] portion of a DSN for logging, without
// credentials.
func HostOf(dsn string) string {
	if !isURLDSN(dsn) {
		for _, field := range strings.Fields(dsn) {
			if v, ok := strings.CutPrefix(field, "host="); ok {
				return v
			}
		}
		return "(unknown)"
	}
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.IndexAny(rest, "/?"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}
