// file: internal/testutil/integration.go
// version: 1.0.0
// guid: e6b3a8d1-4f7c-4b2e-9a5d-0c8f3e6b1a4d

package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/laosuan/BookPlayer/internal/config"
	"github.com/laosuan/BookPlayer/internal/database"
	"github.com/laosuan/BookPlayer/internal/library"
)

// Env holds all resources for a library test.
type Env struct {
	Store   database.Store
	Service *library.Service
	RootDir string
	TempDir string
	T       *testing.T
}

// Setup creates a Pebble store, a processed-root directory, and a library
// service over both. Cleanup runs automatically when the test ends.
func Setup(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	tmpBase := t.TempDir()
	dbPath := filepath.Join(tmpBase, "library.pebble")
	rootDir := filepath.Join(tmpBase, "Processed")
	require.NoError(t, os.MkdirAll(rootDir, 0755))

	store, err := database.NewPebbleStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	config.AppConfig = config.Config{
		DatabaseType:        "pebble",
		DatabasePath:        dbPath,
		ProcessedRoot:       rootDir,
		SupportedExtensions: []string{".m4b", ".mp3", ".m4a", ".flac", ".ogg", ".opus"},
	}

	return &Env{
		Store:   store,
		Service: library.NewService(store, rootDir),
		RootDir: rootDir,
		TempDir: tmpBase,
		T:       t,
	}
}

// WriteBook creates a fake audio file under the processed root and returns its
// absolute path.
func (e *Env) WriteBook(relativePath string) string {
	e.T.Helper()
	abs := filepath.Join(e.RootDir, relativePath)
	require.NoError(e.T, os.MkdirAll(filepath.Dir(abs), 0755))
	require.NoError(e.T, os.WriteFile(abs, []byte("audio-bytes"), 0644))
	return abs
}

// WriteFolder creates a directory under the processed root and returns its
// absolute path.
func (e *Env) WriteFolder(relativePath string) string {
	e.T.Helper()
	abs := filepath.Join(e.RootDir, relativePath)
	require.NoError(e.T, os.MkdirAll(abs, 0755))
	return abs
}
