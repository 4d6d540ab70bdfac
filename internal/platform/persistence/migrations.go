package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

const fileSourceScheme = "file://"

// RunMigrations applies every pending migration under migrationsPath
// (the transaction_types catalogue, transactions and transaction_outbox).
func RunMigrations(databaseURL string, migrationsPath string) error {
	sourceURL, err := migrationsSourceURL(migrationsPath)
	if err != nil {
		return err
	}
	if databaseURL == "" {
		return errors.New("database URL cannot be empty")
	}

	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		_, _ = m.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return fmt.Errorf("migration source error: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("migration database error: %w", dbErr)
	}

	return nil
}

// migrationsSourceURL accepts both a bare directory and a file:// URL.
func migrationsSourceURL(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == fileSourceScheme {
		return "", errors.New("migrations path cannot be empty")
	}
	if strings.HasPrefix(path, fileSourceScheme) {
		return path, nil
	}
	return fileSourceScheme + path, nil
}
