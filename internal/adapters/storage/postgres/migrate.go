package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate aplica las migraciones pendientes desde migrationsPath; acepta
// tanto un path pelado ("migrations") como una URL file://. Sin
// migraciones pendientes no es error.
func Migrate(dsn, migrationsPath string) error {
	m, err := migrate.New(sourceURL(migrationsPath), dsn)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// sourceURL normaliza el path a la URL con esquema que migrate exige.
func sourceURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}
