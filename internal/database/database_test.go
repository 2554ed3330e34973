package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestOpenMemoryCreatesSchema(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"categories", "shopping_items"} {
		ok, err := tableExists(db.DB, table)
		if err != nil {
			t.Fatalf("table exists: %v", err)
		}
		if !ok {
			t.Errorf("expected table %s", table)
		}
	}

	latest, err := LatestVersion()
	if err != nil {
		t.Fatalf("latest version: %v", err)
	}
	if latest != 2 {
		t.Errorf("latest version = %d, want 2", latest)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`INSERT INTO shopping_items (name, category_id) VALUES ('Milk', 999)`)
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestOpenLocksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("open first: %v", err)
	}

	if _, err := Open(path); !errors.Is(err, ErrLocked) {
		t.Fatalf("second open err = %v, want ErrLocked", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
	again.Close()
}

func TestNewerSchemaVersionIsRecreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO categories (name) VALUES ('Produce')`); err != nil {
		t.Fatalf("insert category: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO goose_db_version (version_id, is_applied) VALUES (99, 1)`); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	if n := countRows(t, db.DB, "categories"); n != 0 {
		t.Errorf("categories after destructive migration = %d, want 0", n)
	}
}

func TestLegacySchemaIsRecreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.db")

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("raw open: %v", err)
	}
	if _, err := raw.Exec(`CREATE TABLE categories (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	if _, err := raw.Exec(`INSERT INTO categories (name) VALUES ('Old')`); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	raw.Close()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if n := countRows(t, db.DB, "categories"); n != 0 {
		t.Errorf("categories after destructive migration = %d, want 0", n)
	}
	if _, err := db.Exec(`INSERT INTO categories (name, is_selected) VALUES ('New', 1)`); err != nil {
		t.Fatalf("insert into recreated table: %v", err)
	}
}
