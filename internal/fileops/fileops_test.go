// file: internal/fileops/fileops_test.go
// version: 1.0.0
// guid: 3d7f1b5e-9a4c-4e8b-b2d6-0c5a8f3e7d1b

package fileops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveFileCreatesDestinationDir(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.mp3")
	dst := filepath.Join(tmp, "deep", "nested", "dst.mp3")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0644))

	require.NoError(t, MoveFile(src, dst))

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestMoveFileSamePathIsNoOp(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.mp3")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0644))

	require.NoError(t, MoveFile(src, src))
	_, err := os.Stat(src)
	assert.NoError(t, err)
}

func TestMoveFileMissingSourceFails(t *testing.T) {
	tmp := t.TempDir()
	err := MoveFile(filepath.Join(tmp, "ghost.mp3"), filepath.Join(tmp, "dst.mp3"))
	assert.Error(t, err)
}

func TestMoveDirectory(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "folder")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "track.mp3"), []byte("data"), 0644))

	dst := filepath.Join(tmp, "moved")
	require.NoError(t, MoveFile(src, dst))

	content, err := os.ReadFile(filepath.Join(dst, "sub", "track.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveFileMissingIsNoOp(t *testing.T) {
	tmp := t.TempDir()
	assert.NoError(t, RemoveFile(filepath.Join(tmp, "ghost.mp3")))

	present := filepath.Join(tmp, "real.mp3")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0644))
	require.NoError(t, RemoveFile(present))
	_, err := os.Stat(present)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveDirMissingIsNoOp(t *testing.T) {
	tmp := t.TempDir()
	assert.NoError(t, RemoveDir(filepath.Join(tmp, "ghost")))

	dir := filepath.Join(tmp, "full")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leftover.mp3"), []byte("x"), 0644))

	require.NoError(t, RemoveDir(dir))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestEnsureDir(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "a", "b", "c")
	require.NoError(t, EnsureDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Idempotent.
	assert.NoError(t, EnsureDir(dir))
}
