// file: internal/scanner/scanner.go
// version: 1.2.0
// guid: 5e8b2d4f-7c1a-4e9b-b6d3-2a9f5c8e1d7b

package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListContents returns the absolute paths of the direct entries of dir,
// one level deep, skipping hidden entries, in stable name order. This is
// the directory-scan surface that feeds the import operation.
func ListContents(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	paths := []string{}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// IsDirectory reports whether path names a directory. Errors are treated
// as "not a directory" since the caller will fail later with more context.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
