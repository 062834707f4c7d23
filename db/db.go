package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Import postgres driver
)

func Connect(dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify the connection with a timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to ping database within %v: %w", timeout, err), closeErr)
	}

	return db, nil
}

// CheckSchemaVersion сверяет версию схемы из schema_info с минимально
// поддерживаемой. Расхождение — ошибка конфигурации развёртывания, а не
// повод для проверок структуры таблиц на лету.
func CheckSchemaVersion(ctx context.Context, db *sql.DB, minVersion int) error {
	var version int
	err := db.QueryRowContext(ctx, `SELECT version FROM schema_info ORDER BY version DESC LIMIT 1`).Scan(&version)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("schema_info table is empty, expected version >= %d", minVersion)
		}
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version < minVersion {
		return fmt.Errorf("database schema version %d is older than supported minimum %d, run migrations first", version, minVersion)
	}
	return nil
}
