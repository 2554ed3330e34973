package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	memoryPath   = ":memory:"
	versionTable = "goose_db_version"
)

// ErrLocked is returned when another process already holds the database file.
var ErrLocked = errors.New("database is locked by another process")

// DB is an open shopping database. Close releases the file lock as well as the
// underlying connection.
type DB struct {
	*sql.DB
	lock *flock.Flock
}

// Open opens a SQLite database at the given path and runs migrations. A database
// whose schema this binary does not recognise is dropped and recreated.
func Open(dbPath string) (*DB, error) {
	var lock *flock.Flock
	dsn := memoryPath
	if dbPath != memoryPath {
		lock = flock.New(dbPath + ".lock")
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock db: %w", err)
		}
		if !ok {
			return nil, ErrLocked
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		unlock(lock)
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps :memory: databases shared across callers and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		unlock(lock)
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		unlock(lock)
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		unlock(lock)
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{DB: db, lock: lock}, nil
}

// Close closes the database and releases its file lock.
func (d *DB) Close() error {
	err := d.DB.Close()
	unlock(d.lock)
	return err
}

func unlock(lock *flock.Flock) {
	if lock != nil {
		lock.Unlock()
	}
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	incompatible, err := schemaIncompatible(db)
	if err != nil {
		return err
	}
	if incompatible {
		slog.Warn("incompatible schema version, recreating database")
		if err := resetSchema(db); err != nil {
			return err
		}
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// schemaIncompatible reports whether the database carries tables from a schema
// version this binary cannot migrate: either a version newer than the newest
// embedded migration, or shopping tables without any version bookkeeping.
func schemaIncompatible(db *sql.DB) (bool, error) {
	versioned, err := tableExists(db, versionTable)
	if err != nil {
		return false, err
	}
	if !versioned {
		legacy, err := tableExists(db, "categories")
		if err != nil {
			return false, err
		}
		return legacy, nil
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		return false, fmt.Errorf("get db version: %w", err)
	}
	latest, err := LatestVersion()
	if err != nil {
		return false, err
	}
	return current > latest, nil
}

// LatestVersion returns the newest schema version embedded in this binary.
func LatestVersion() (int64, error) {
	goose.SetBaseFS(migrations)
	all, err := goose.CollectMigrations("migrations", 0, goose.MaxVersion)
	if err != nil {
		return 0, fmt.Errorf("collect migrations: %w", err)
	}
	last, err := all.Last()
	if err != nil {
		return 0, fmt.Errorf("last migration: %w", err)
	}
	return last.Version, nil
}

func resetSchema(db *sql.DB) error {
	for _, table := range []string{"shopping_items", "categories", versionTable} {
		if _, err := db.Exec(`DROP TABLE IF EXISTS ` + table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return count > 0, nil
}
