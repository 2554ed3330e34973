package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SHOPLIST_PORT", "SHOPLIST_DB_PATH", "SHOPLIST_LOG_LEVEL", "SHOPLIST_BACKUP_DIR", "SHOPLIST_BACKUP_PASSPHRASE", "SHOPLIST_WRITE_LIMIT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DBPath != "shoplist.db" {
		t.Errorf("db path = %q, want %q", cfg.DBPath, "shoplist.db")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.BackupDir != "backups" {
		t.Errorf("backup dir = %q, want %q", cfg.BackupDir, "backups")
	}
	if cfg.BackupPassphrase != "" {
		t.Errorf("backup passphrase = %q, want empty", cfg.BackupPassphrase)
	}
	if cfg.WriteLimit != 120 {
		t.Errorf("write limit = %d, want 120", cfg.WriteLimit)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SHOPLIST_PORT", "9999")
	t.Setenv("SHOPLIST_DB_PATH", "/tmp/list.db")

	cfg := Load()
	if cfg.Port != "9999" {
		t.Errorf("port = %q, want %q", cfg.Port, "9999")
	}
	if cfg.DBPath != "/tmp/list.db" {
		t.Errorf("db path = %q, want %q", cfg.DBPath, "/tmp/list.db")
	}
}

func TestLoadWriteLimit(t *testing.T) {
	cases := map[string]int{"0": 0, "30": 30, "lots": 120}
	for value, want := range cases {
		t.Setenv("SHOPLIST_WRITE_LIMIT", value)
		if got := Load().WriteLimit; got != want {
			t.Errorf("SHOPLIST_WRITE_LIMIT=%q: write limit = %d, want %d", value, got, want)
		}
	}
}
