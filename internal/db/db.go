package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/op-booking-app/migrations"
	"github.com/charmbracelet/log"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
)

// Writers take the database lock when the transaction begins, so two room
// mutations never interleave their read-modify-write cycles.
const dsnOptions = "_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"

func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", fmt.Sprintf("file:%s?%s", path, dsnOptions))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to connect to %s", path)
	}
	return db, nil
}

func InitDB(path string) *sqlx.DB {
	db, err := Open(path)
	if err != nil {
		log.Fatal("Failed to connect to DB", "err", err)
	}

	log.Info("Database connected.", "path", path)
	return db
}

func RunMigrations(db *sql.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return eris.Wrap(err, "failed to load migrations")
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return eris.Wrap(err, "failed to create migrate driver")
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return eris.Wrap(err, "failed to create migrate instance")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return eris.Wrap(err, "failed to apply migrations")
	}
	return nil
}
