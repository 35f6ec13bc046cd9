// file: internal/config/config.go
// version: 1.1.0
// guid: 4f3a9c1e-8b2d-4e6f-9a0c-7d5e3b1f8a2c

package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// ProcessedRoot is the directory that holds every managed item; an
	// item's on-disk location is ProcessedRoot + its relative path.
	ProcessedRoot string
	DatabasePath  string
	DatabaseType  string // "pebble" (default) or "sqlite"
	EnableSQLite  bool   // Must be true to use SQLite (safety flag)
	ListenAddr    string

	// Remote sync
	RemoteURL       string
	SyncMinInterval time.Duration

	// Filesystem watcher
	WatchEnabled  bool
	WatchDebounce time.Duration

	Workers             int
	SupportedExtensions []string
}

var AppConfig Config

// InitConfig initializes the application configuration
func InitConfig() {
	// Set defaults
	viper.SetDefault("database_type", "pebble")
	viper.SetDefault("enable_sqlite3_i_know_the_risks", false)
	viper.SetDefault("listen_addr", ":8335")
	viper.SetDefault("sync_min_interval", "60s")
	viper.SetDefault("watch_debounce", "5s")
	viper.SetDefault("workers", 2)

	AppConfig = Config{
		ProcessedRoot:   viper.GetString("processed_root"),
		DatabasePath:    viper.GetString("database_path"),
		DatabaseType:    viper.GetString("database_type"),
		EnableSQLite:    viper.GetBool("enable_sqlite3_i_know_the_risks"),
		ListenAddr:      viper.GetString("listen_addr"),
		RemoteURL:       viper.GetString("remote_url"),
		SyncMinInterval: viper.GetDuration("sync_min_interval"),
		WatchEnabled:    viper.GetBool("watch_enabled"),
		WatchDebounce:   viper.GetDuration("watch_debounce"),
		Workers:         viper.GetInt("workers"),
		SupportedExtensions: []string{
			".m4b", ".mp3", ".m4a", ".aac", ".ogg", ".flac", ".wma",
		},
	}

	// Normalize database type
	if AppConfig.DatabaseType == "sqlite3" {
		AppConfig.DatabaseType = "sqlite"
	}
	if AppConfig.DatabaseType == "" {
		AppConfig.DatabaseType = "pebble"
	}

	if AppConfig.DatabasePath == "" && AppConfig.ProcessedRoot != "" {
		AppConfig.DatabasePath = filepath.Join(AppConfig.ProcessedRoot, ".bookplayer.db")
	}
}

// IsSupportedExtension reports whether ext (including the leading dot)
// names a playable audio format.
func IsSupportedExtension(ext string) bool {
	for _, supported := range AppConfig.SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}
