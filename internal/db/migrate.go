package db

import (
	"embed"
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/bilan-portal/internal/config"
	"github.com/diewo77/bilan-portal/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var requiredTables = []string{"clients", "recipients", "client_recipients"}

// Migrate brings the schema up to date. Postgres uses the versioned SQL
// migrations when useSQL is set; every other case falls back to AutoMigrate.
func Migrate(db *gorm.DB, cfg config.DatabaseConfig, useSQL bool, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if useSQL && !cfg.IsSQLite() {
		if err := RunSQLMigrations(ToURLDSN(PostgresDSN(cfg))); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Info("sql migrations applied")
	} else {
		for _, m := range models.All() {
			if err := db.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
		log.Info("automigrate completed")
	}
	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// RunSQLMigrations applies the embedded migrations to the postgres database at url.
func RunSQLMigrations(url string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
