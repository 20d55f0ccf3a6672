package database

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	migrateMysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrateUp applies every pending migration.  Running it against an up to
// date schema is a no-op.
func MigrateUp(db *sql.DB, dbName string) error {
	m, err := prepareMigrate(db, dbName)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate up")
	}
	return nil
}

// MigrateDown reverts every applied migration.
func MigrateDown(db *sql.DB, dbName string) error {
	m, err := prepareMigrate(db, dbName)
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate down")
	}
	return nil
}

func prepareMigrate(db *sql.DB, dbName string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "load embedded migrations")
	}
	driver, err := migrateMysql.WithInstance(db, &migrateMysql.Config{DatabaseName: dbName})
	if err != nil {
		return nil, errors.Wrap(err, "migrate driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return nil, errors.Wrap(err, "migrate instance")
	}
	return m, nil
}
