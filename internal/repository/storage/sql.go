package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	// database drivers register themselves with database/sql.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

//go:embed migrations/*.sql
var migrations embed.FS

type SQLStorage struct {
	Connection *sqlx.DB
	Driver     string
}

func NewSQLStorage(ctx context.Context, driver, dsn string) (*SQLStorage, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	conn, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("can't connect to database: %w", err)
	}

	// sqlite allows a single writer
	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
	}

	return &SQLStorage{Connection: conn, Driver: driver}, nil
}

// Migrate applies every embedded migration that is not applied yet.
func (that *SQLStorage) Migrate() error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("can't open migrations: %w", err)
	}

	var target database.Driver

	switch that.Driver {
	case DriverSQLite:
		target, err = sqlite3.WithInstance(that.Connection.DB, &sqlite3.Config{})
	case DriverPostgres:
		target, err = postgres.WithInstance(that.Connection.DB, &postgres.Config{})
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedDriver, that.Driver)
	}

	if err != nil {
		return fmt.Errorf("can't prepare migration target: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, that.Driver, target)
	if err != nil {
		return fmt.Errorf("can't create migrator: %w", err)
	}

	if err = migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("can't apply migrations: %w", err)
	}

	return nil
}

func (that *SQLStorage) Close() error {
	return that.Connection.Close()
}
