package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/newsletter/internal/config"
	"github.com/ignite/newsletter/internal/pkg/distlock"
	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/repository/postgres"
)

const lockKey = "newsletter-migrations"

const createVersionsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "path to config.yaml")
	listOnly := flag.Bool("list", false, "list applied migrations and exit")
	flag.Parse()

	dir := "migrations"
	if flag.NArg() > 0 {
		dir = flag.Arg(0)
	}

	if err := run(*cfgPath, dir, *listOnly); err != nil {
		logger.Error("migrate failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(cfgPath, dir string, listOnly bool) error {
	dsn := os.Getenv("DATABASE_URL")
	var redisClient *redis.Client
	if cfg, err := config.LoadFromEnv(cfgPath); err == nil {
		dsn = cfg.Database.URL
		if cfg.Redis.Enabled() {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			defer redisClient.Close()
		}
	} else if dsn == "" {
		return fmt.Errorf("load config: %w", err)
	}
	if dsn == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := postgres.Open(dsn, postgres.PoolOptions{MaxOpenConns: 2})
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	logger.Info("connected to database", "host", postgres.HostOf(dsn))

	if listOnly {
		versions, err := appliedVersions(ctx, db)
		if err != nil {
			return err
		}
		for _, v := range versions {
			fmt.Println(" ", v)
		}
		fmt.Printf("Total: %d applied\n", len(versions))
		return nil
	}

	lock := distlock.New(redisClient, db, lockKey, 10*time.Minute)
	return distlock.WithLock(ctx, lock, func(ctx context.Context) error {
		n, err := applyMigrations(ctx, db, dir)
		logger.Info("migrations finished", "applied", n)
		return err
	})
}

// pendingFiles returns the .sql files in dir in lexical order.
func pendingFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) ([]string, error) {
	if _, err := db.ExecContext(ctx, createVersionsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// applyMigrations runs every file not yet recorded in schema_migrations,
// each in its own transaction, and stops at the first failure.
func applyMigrations(ctx context.Context, db *sql.DB, dir string) (int, error) {
	files, err := pendingFiles(dir)
	if err != nil {
		return 0, err
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return 0, err
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	n := 0
	for _, f := range files {
		if done[f] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return n, err
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if err := applyOne(ctx, db, f, string(data)); err != nil {
			return n, fmt.Errorf("%s: %w", f, err)
		}
		logger.Info("migration applied", "version", f)
		n++
	}
	return n, nil
}

func applyOne(ctx context.Context, db *sql.DB, version, content string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, content); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
		return err
	}
	return tx.Commit()
}
