package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/shoplist/internal/database"
)

const (
	filePrefix = "backup-"
	fileSuffix = ".db.enc"
	timeLayout = "20060102T150405.000Z"
)

var (
	ErrNoBackup     = errors.New("no backup found")
	ErrNoPassphrase = errors.New("backup passphrase not configured")
)

// Info describes an encrypted backup on disk.
type Info struct {
	Name      string    `json:"name" yaml:"name"`
	Path      string    `json:"path" yaml:"path"`
	SizeBytes int64     `json:"size_bytes" yaml:"size_bytes"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Manager writes encrypted snapshots of a live database into a directory.
type Manager struct {
	db         *sql.DB
	dir        string
	passphrase string
	logger     *slog.Logger
}

// NewManager creates a backup manager. db may be an in-memory database.
func NewManager(db *sql.DB, dir, passphrase string, logger *slog.Logger) *Manager {
	return &Manager{db: db, dir: dir, passphrase: passphrase, logger: logger}
}

// Create snapshots the database with VACUUM INTO, encrypts the copy and stores
// it in the backup directory.
func (m *Manager) Create(ctx context.Context) (*Info, error) {
	if m.passphrase == "" {
		return nil, ErrNoPassphrase
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	snapshot := filepath.Join(os.TempDir(), "shoplist-"+uuid.NewString()+".db")
	defer os.Remove(snapshot)

	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Encrypt(plaintext, m.passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	now := time.Now().UTC()
	name := filePrefix + now.Format(timeLayout) + fileSuffix
	path := filepath.Join(m.dir, name)

	// Write beside the target and rename so a partial file is never listed.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0600); err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("finalize backup: %w", err)
	}

	info := &Info{Name: name, Path: path, SizeBytes: int64(len(sealed)), CreatedAt: now}
	m.logger.Info("backup created", "path", path, "bytes", info.SizeBytes)
	return info, nil
}

// List returns the backups in the directory, newest first. A missing
// directory yields an empty list.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	backups := []Info{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		created, err := time.Parse(timeLayout, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		backups = append(backups, Info{
			Name:      name,
			Path:      filepath.Join(m.dir, name),
			SizeBytes: fi.Size(),
			CreatedAt: created,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Latest returns the newest backup or ErrNoBackup.
func (m *Manager) Latest() (*Info, error) {
	backups, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(backups) == 0 {
		return nil, ErrNoBackup
	}
	return &backups[0], nil
}

// Restore decrypts src, checks the result is a sound SQLite database and
// replaces the database file at dbPath with it. The database must not be open
// by another process.
func Restore(ctx context.Context, src, dbPath, passphrase string) error {
	if passphrase == "" {
		return ErrNoPassphrase
	}

	lock := flock.New(dbPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock database: %w", err)
	}
	if !locked {
		return database.ErrLocked
	}
	defer lock.Unlock()

	sealed, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	plaintext, err := Decrypt(sealed, passphrase)
	if err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	staged := filepath.Join(filepath.Dir(dbPath), ".shoplist-restore-"+uuid.NewString()+".db")
	defer os.Remove(staged)
	if err := os.WriteFile(staged, plaintext, 0600); err != nil {
		return fmt.Errorf("stage restore: %w", err)
	}

	if err := checkIntegrity(ctx, staged); err != nil {
		return err
	}

	if err := os.Rename(staged, dbPath); err != nil {
		if err := copyFile(staged, dbPath); err != nil {
			return fmt.Errorf("replace database: %w", err)
		}
	}

	// Stale WAL pages would be replayed over the restored file.
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var integrity string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if integrity != "ok" {
		return fmt.Errorf("integrity check failed: %s", integrity)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
