// file: internal/config/config_test.go
// version: 1.0.0
// guid: 9e3b7d1f-5c8a-4f2e-b6d0-4a9c2e7f5b3d

package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestInitConfigDefaults(t *testing.T) {
	resetViper(t)
	InitConfig()

	assert.Equal(t, "pebble", AppConfig.DatabaseType)
	assert.False(t, AppConfig.EnableSQLite)
	assert.Equal(t, ":8335", AppConfig.ListenAddr)
	assert.Equal(t, "60s", AppConfig.SyncMinInterval.String())
	assert.Equal(t, "5s", AppConfig.WatchDebounce.String())
	assert.Equal(t, 2, AppConfig.Workers)
	assert.NotEmpty(t, AppConfig.SupportedExtensions)
}

func TestInitConfigNormalizesSQLiteAlias(t *testing.T) {
	resetViper(t)
	viper.Set("database_type", "sqlite3")
	InitConfig()
	assert.Equal(t, "sqlite", AppConfig.DatabaseType)
}

func TestInitConfigDerivesDatabasePath(t *testing.T) {
	resetViper(t)
	root := t.TempDir()
	viper.Set("processed_root", root)
	InitConfig()

	assert.Equal(t, filepath.Join(root, ".bookplayer.db"), AppConfig.DatabasePath)
}

func TestIsSupportedExtension(t *testing.T) {
	resetViper(t)
	InitConfig()

	assert.True(t, IsSupportedExtension(".mp3"))
	assert.True(t, IsSupportedExtension(".m4b"))
	assert.False(t, IsSupportedExtension(".pdf"))
	assert.False(t, IsSupportedExtension("mp3"))
}
