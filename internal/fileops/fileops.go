// file: internal/fileops/fileops.go
// version: 1.1.0
// guid: 9d2c5e7a-4f1b-4c8d-a3e6-8b0f2d9c6a1e

package fileops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MoveFile relocates src to dst, creating the destination directory as
// needed. A plain rename is attempted first; when that fails (for example
// across filesystems) it falls back to copy-then-remove. The copy is synced
// before the source is removed, so a failed move never loses the source.
func MoveFile(src, dst string) error {
	if src == dst {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return copyDirAndRemove(src, dst)
	}

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove source after copy: %w", err)
	}
	return nil
}

// RemoveFile deletes path if it exists. A missing file is not an error.
func RemoveFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(path)
}

// RemoveDir deletes the directory at path and anything left inside it.
// A missing directory is not an error.
func RemoveDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return os.RemoveAll(path)
}

// EnsureDir creates path and any missing parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// copyFile copies a file from src to dst with a sync before returning
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	// Sync to ensure data is written to disk
	if err := destFile.Sync(); err != nil {
		return err
	}

	// Copy file permissions
	sourceInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, sourceInfo.Mode())
}

// copyDirAndRemove copies a directory tree then removes the source.
func copyDirAndRemove(src, dst string) error {
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target)
	})
	if err != nil {
		return err
	}
	return os.RemoveAll(src)
}
