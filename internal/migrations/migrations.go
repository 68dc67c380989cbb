// Package migrations applies the SQL files in migrations/ to PostgreSQL.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Runner wraps a migrate instance bound to one database connection.
type Runner struct {
	db *sql.DB
	m  *migrate.Migrate
}

// Open connects to dsn and loads migrations from dir.
func Open(dir, dsn string) (*Runner, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return &Runner{db: db, m: m}, nil
}

func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

// Version returns the applied version; 0 means nothing has been applied.
func (r *Runner) Version() (uint, bool, error) {
	version, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Up applies steps migrations, or all pending ones when steps is 0.
func (r *Runner) Up(steps int) error {
	var err error
	if steps > 0 {
		err = r.m.Steps(steps)
	} else {
		err = r.m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Down rolls back steps migrations, or all of them when steps is 0.
func (r *Runner) Down(steps int) error {
	var err error
	if steps > 0 {
		err = r.m.Steps(-steps)
	} else {
		err = r.m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rolling back migrations: %w", err)
	}
	return nil
}

func (r *Runner) Force(version int) error {
	if err := r.m.Force(version); err != nil {
		return fmt.Errorf("forcing version: %w", err)
	}
	return nil
}

// Apply brings the database at dsn up to date. It refuses to touch a dirty
// database and returns the versions before and after.
func Apply(dir, dsn string) (from, to uint, err error) {
	r, err := Open(dir, dsn)
	if err != nil {
		return 0, 0, err
	}
	defer r.Close()

	from, dirty, err := r.Version()
	if err != nil {
		return 0, 0, fmt.Errorf("checking migration version: %w", err)
	}
	if dirty {
		return from, from, fmt.Errorf("database is in a dirty state (version %d). Manual intervention required", from)
	}
	if err := r.Up(0); err != nil {
		return from, from, err
	}
	to, _, err = r.Version()
	return from, to, err
}
