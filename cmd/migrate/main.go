package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/bustrack/internal/pkg/config"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|status>")
	}

	cfg, err := config.Load("bustrack-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}

	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		log.Fatalf("read schema_migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		for _, name := range migrationNames("up") {
			if applied[name] {
				continue
			}
			apply(ctx, pool, name, "up", func(tx pgx.Tx) error {
				_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name)
				return err
			})
		}
	case "down":
		names := migrationNames("down")
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
		for _, name := range names {
			if !applied[name] {
				continue
			}
			apply(ctx, pool, name, "down", func(tx pgx.Tx) error {
				_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE name = $1`, name)
				return err
			})
		}
	case "status":
		for _, name := range migrationNames("up") {
			state := "pending"
			if applied[name] {
				state = "applied"
			}
			fmt.Printf("%-8s %s\n", state, name)
		}
		return
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}

	log.Println("migrations complete")
}

// migrationNames lists migrations by name (the file name without the
// .up.sql or .down.sql suffix) in ascending order.
func migrationNames(direction string) []string {
	suffix := "." + direction + ".sql"
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*"+suffix))
	if err != nil {
		log.Fatalf("glob migrations: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no %s migrations in %s", direction, migrationsDir)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, strings.TrimSuffix(filepath.Base(f), suffix))
	}
	sort.Strings(names)
	return names
}

func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	applied := make(map[string]bool, len(names))
	for _, n := range names {
		applied[n] = true
	}
	return applied, nil
}

// apply runs one migration file and its bookkeeping in a single transaction.
func apply(ctx context.Context, pool *pgxpool.Pool, name, direction string, record func(pgx.Tx) error) {
	path := filepath.Join(migrationsDir, name+"."+direction+".sql")
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return err
		}
		return record(tx)
	})
	if err != nil {
		log.Fatalf("%s %s: %v", direction, name, err)
	}

	fmt.Printf("OK  %-4s %s\n", direction, name)
}
