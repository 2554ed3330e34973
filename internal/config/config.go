package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds runtime settings read from the environment.
type Config struct {
	Port             string
	DBPath           string
	LogLevel         string
	BackupDir        string
	BackupPassphrase string
	// WriteLimit is the number of mutating API requests a client may make per
	// minute. Zero disables the limit.
	WriteLimit int
}

// Load reads an optional .env file and then the SHOPLIST_* environment variables.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:             GetEnv("SHOPLIST_PORT", "8080"),
		DBPath:           GetEnv("SHOPLIST_DB_PATH", "shoplist.db"),
		LogLevel:         GetEnv("SHOPLIST_LOG_LEVEL", "info"),
		BackupDir:        GetEnv("SHOPLIST_BACKUP_DIR", "backups"),
		BackupPassphrase: GetEnv("SHOPLIST_BACKUP_PASSPHRASE", ""),
		WriteLimit:       GetEnvInt("SHOPLIST_WRITE_LIMIT", 120),
	}
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt is GetEnv for integers. Unparseable values fall back to the default.
func GetEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(GetEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}
