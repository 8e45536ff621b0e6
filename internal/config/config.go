// Package config provides centralized configuration for the music-manager
// server. Values come from an optional YAML file overlaid with environment
// variables; every field has a sensible default.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all server configuration values.
type Config struct {
	// Env selects the log format: "local" (pretty) or "prod" (JSON).
	Env string `yaml:"env" env:"ENV" env-default:"local"`

	HTTPServer HTTPServer `yaml:"http_server"`
	Storage    Storage    `yaml:"storage"`
	Auth       Auth       `yaml:"auth"`
	Worker     Worker     `yaml:"worker"`

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string `yaml:"cors_origin" env:"CORS_ORIGIN" env-default:"*"`
}

// HTTPServer configures the listener.
type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"30s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// Storage configures the two on-disk stores.
type Storage struct {
	// DBPath is the path to the SQLite metadata database.
	DBPath string `yaml:"db_path" env:"DB_PATH" env-default:"musicman.db"`
	// BlobPath is the path to the bbolt file-content database.
	BlobPath string `yaml:"blob_path" env:"BLOB_PATH" env-default:"musicman-blobs.db"`
}

// Auth configures sessions, download links and the bootstrap admin.
type Auth struct {
	SessionTTL time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"12h"`
	LinkTTL    time.Duration `yaml:"link_ttl" env:"LINK_TTL" env-default:"15m"`

	// AdminEmail/AdminPassword seed the first admin account when the user
	// table is empty. Ignored otherwise.
	AdminEmail    string `yaml:"admin_email" env:"ADMIN_EMAIL" env-default:"admin@localhost"`
	AdminPassword string `yaml:"admin_password" env:"ADMIN_PASSWORD" env-default:""`
}

// Worker configures the background verification loop.
type Worker struct {
	Interval time.Duration `yaml:"interval" env:"WORKER_INTERVAL" env-default:"3s"`
}

// Load reads configuration. A .env file in the working directory is loaded
// first (missing is fine), then the YAML file at path (skipped when path is
// empty or absent), then environment variables override everything.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
			return cfg, nil
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read env config: %w", err)
	}
	return cfg, nil
}
