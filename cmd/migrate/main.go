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

	"quickpay-bridge/internal/config"
	"quickpay-bridge/internal/db"
	"quickpay-bridge/internal/logger"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	sectionUp   = "Up"
	sectionDown = "Down"
)

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "up", "migration mode: up or down")
	dir := flag.String("dir", "./migrations", "directory holding *.sql migrations")
	flag.Parse()

	logger.Init(os.Getenv("APP_ENV"))
	defer logger.Sync()

	conn, err := open()
	if err != nil {
		logger.L().Fatal("Failed to open database", zap.Error(err))
	}
	defer conn.Close()

	if err := run(context.Background(), conn, *mode, *dir); err != nil {
		logger.L().Fatal("Migration failed", zap.Error(err))
	}
}

// open prefers DB_URL and falls back to the service's DB_* settings.
func open() (*sql.DB, error) {
	if url := os.Getenv("DB_URL"); url != "" {
		return sql.Open("postgres", url)
	}
	return db.NewDatabase(config.LoadConfig())
}

func run(ctx context.Context, conn *sql.DB, mode, dir string) error {
	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		return err
	}

	switch mode {
	case "up":
		return migrateUp(ctx, conn, files)
	case "down":
		return migrateDown(ctx, conn, files)
	default:
		return fmt.Errorf("unknown mode %q (use up or down)", mode)
	}
}

func migrationFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// migrateUp applies every file not yet recorded, each in its own transaction.
func migrateUp(ctx context.Context, conn *sql.DB, files []string) error {
	log := logger.L()
	applied := 0

	for _, file := range files {
		version := filepath.Base(file)

		var exists bool
		err := conn.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check %s: %w", version, err)
		}
		if exists {
			log.Debug("Skipping applied migration", zap.String("version", version))
			continue
		}

		body, err := section(file, sectionUp)
		if err != nil {
			return err
		}

		log.Info("Applying migration", zap.String("version", version))
		err = inTx(ctx, conn, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, body); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply %s: %w", version, err)
		}
		applied++
	}

	log.Info("Migrations up to date", zap.Int("applied", applied))
	return nil
}

// migrateDown rolls back the most recently applied migration only.
func migrateDown(ctx context.Context, conn *sql.DB, files []string) error {
	var version string
	err := conn.QueryRowContext(ctx,
		`SELECT version FROM schema_migrations ORDER BY applied_at DESC, version DESC LIMIT 1`,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		logger.L().Info("Nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find last migration: %w", err)
	}

	var file string
	for _, f := range files {
		if filepath.Base(f) == version {
			file = f
			break
		}
	}
	if file == "" {
		return fmt.Errorf("migration file not found for version %s", version)
	}

	body, err := section(file, sectionDown)
	if err != nil {
		return err
	}

	logger.L().Info("Rolling back migration", zap.String("version", version))
	err = inTx(ctx, conn, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, body); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
		return err
	})
	if err != nil {
		return fmt.Errorf("roll back %s: %w", version, err)
	}
	return nil
}

func inTx(ctx context.Context, conn *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func section(file, name string) (string, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file, err)
	}
	body := extractSection(string(content), name)
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%s has no %q section", filepath.Base(file), name)
	}
	return body, nil
}

// extractSection returns the lines between "-- +migrate <name>" and the next
// marker.
func extractSection(content, name string) string {
	var b strings.Builder
	inside := false

	for _, line := range strings.Split(content, "\n") {
		marker := strings.HasPrefix(strings.TrimSpace(line), "-- +migrate")
		switch {
		case marker && strings.TrimSpace(line) == "-- +migrate "+name:
			inside = true
		case marker && inside:
			return b.String()
		case inside:
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
