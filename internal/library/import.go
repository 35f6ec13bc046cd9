// file: internal/library/import.go
// version: 1.3.0
// guid: 7c4f2a8e-1d9b-4e3c-a5f7-9b2d6c8e0a4f

package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/laosuan/BookPlayer/internal/database"
	"github.com/laosuan/BookPlayer/internal/scanner"
)

// importEntry is one unit of pending work during an import descent.
type importEntry struct {
	absPath    string
	parentPath string
	rank       int
}

// ImportFiles mirrors a set of on-disk paths (already located under the
// processed root) into the persisted tree. Directories become folders and
// are descended into; everything else becomes a book. The descent uses an
// explicit work stack so arbitrarily deep trees never grow the call stack,
// and the whole batch persists in a single transaction committed at the
// end. The optional progress callback observes each created item.
func (s *Service) ImportFiles(ctx context.Context, paths []string, intoFolderPath string, progress func(database.Item)) ([]database.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if intoFolderPath != "" {
		folder, err := s.store.GetItem(intoFolderPath)
		if err != nil {
			return nil, err
		}
		if folder == nil || !folder.IsFolder() {
			return nil, fmt.Errorf("target folder %s not found", intoFolderPath)
		}
	}

	// Sibling ranks continue after whatever the target already holds.
	nextRank := map[string]int{}
	seedRank := func(parentPath string) (int, error) {
		if rank, ok := nextRank[parentPath]; ok {
			return rank, nil
		}
		maxRank, err := s.store.MaxChildRank(parentPath)
		if err != nil {
			return 0, err
		}
		nextRank[parentPath] = maxRank + 1
		return maxRank + 1, nil
	}

	stack := []importEntry{}
	pushAll := func(entries []string, parentPath string) error {
		// Pushed in reverse so the stack pops them in listed order.
		base, err := seedRank(parentPath)
		if err != nil {
			return err
		}
		nextRank[parentPath] = base + len(entries)
		for i := len(entries) - 1; i >= 0; i-- {
			stack = append(stack, importEntry{
				absPath:    entries[i],
				parentPath: parentPath,
				rank:       base + i,
			})
		}
		return nil
	}

	if err := pushAll(paths, intoFolderPath); err != nil {
		return nil, err
	}

	tx, err := s.store.Begin()
	if err != nil {
		return nil, err
	}

	created := []database.Item{}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			tx.Discard()
			return nil, err
		}

		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		relativePath, err := s.relativePathFor(entry.absPath)
		if err != nil {
			tx.Discard()
			return nil, err
		}

		item := database.Item{
			RelativePath:     relativePath,
			ParentPath:       entry.parentPath,
			OriginalFileName: filepath.Base(entry.absPath),
			OrderRank:        entry.rank,
		}

		if scanner.IsDirectory(entry.absPath) {
			item.Type = database.ItemTypeFolder
			item.Title = filepath.Base(entry.absPath)
			contents, err := scanner.ListContents(entry.absPath)
			if err != nil {
				tx.Discard()
				return nil, err
			}
			if err := pushAll(contents, relativePath); err != nil {
				tx.Discard()
				return nil, err
			}
		} else {
			item.Type = database.ItemTypeBook
			item.Title = bookTitle(entry.absPath)
		}

		if err := tx.SaveItem(&item); err != nil {
			tx.Discard()
			return nil, err
		}
		created = append(created, item)
		if progress != nil {
			progress(item)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if err := s.UpdateCompletionState(intoFolderPath); err != nil {
		return nil, err
	}
	return created, nil
}

// relativePathFor converts an absolute path under the processed root into
// the item's relative path key. Paths outside the root are rejected.
func (s *Service) relativePathFor(absPath string) (string, error) {
	rel, err := filepath.Rel(s.processedRoot, absPath)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s is outside the processed root", absPath)
	}
	return rel, nil
}

// bookTitle extracts a display title from the file's audio metadata,
// falling back to the file name without its extension.
func bookTitle(absPath string) string {
	fallback := strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))

	f, err := os.Open(absPath)
	if err != nil {
		return fallback
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil || strings.TrimSpace(meta.Title()) == "" {
		return fallback
	}
	return meta.Title()
}
