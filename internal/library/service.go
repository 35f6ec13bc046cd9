// file: internal/library/service.go
// version: 1.6.0
// guid: 3a7e9c1d-5b2f-4d8a-9c6e-4f1b8d3a7e2c

package library

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/laosuan/BookPlayer/internal/database"
)

// Service enforces the library tree invariants over the storage engine:
// every item has exactly one parent context, relative paths mirror the
// on-disk layout under the processed root, and sibling order ranks stay
// dense and unique.
//
// Tree-mutating operations (import, move, delete) are serialized through a
// single mutation lock; cross-item invariants make fine-grained per-item
// locking unsound. Reads are unlocked and observe the last-committed
// snapshot.
type Service struct {
	store         database.Store
	processedRoot string

	mu sync.Mutex
}

// NewService creates a library service rooted at processedRoot.
func NewService(store database.Store, processedRoot string) *Service {
	return &Service{store: store, processedRoot: processedRoot}
}

// Store exposes the underlying storage engine for read-side collaborators.
func (s *Service) Store() database.Store {
	return s.store
}

// ProcessedRoot returns the directory every relative path is anchored to.
func (s *Service) ProcessedRoot() string {
	return s.processedRoot
}

// AbsolutePath maps an item's relative path to its on-disk location.
func (s *Service) AbsolutePath(relativePath string) string {
	return filepath.Join(s.processedRoot, filepath.FromSlash(relativePath))
}

// GetLibrary returns the singleton library row, creating it on demand.
func (s *Service) GetLibrary() (*database.Library, error) {
	return s.store.GetLibrary()
}

// GetItem returns the item at relativePath, or nil when absent.
func (s *Service) GetItem(relativePath string) (*database.Item, error) {
	return s.store.GetItem(relativePath)
}

// SimpleItem is the lightweight identity view of an item, enough to decide
// what something is and how to label it without carrying playback state.
type SimpleItem struct {
	RelativePath string            `json:"relative_path"`
	ParentPath   string            `json:"parent_path"`
	Title        string            `json:"title"`
	Type         database.ItemType `json:"type"`
}

// GetSimpleItem returns the identity view of the item at relativePath, or
// nil when absent.
func (s *Service) GetSimpleItem(relativePath string) (*SimpleItem, error) {
	item, err := s.store.GetItem(relativePath)
	if err != nil || item == nil {
		return nil, err
	}
	return &SimpleItem{
		RelativePath: item.RelativePath,
		ParentPath:   item.ParentPath,
		Title:        item.Title,
		Type:         item.Type,
	}, nil
}

// FetchContents returns the ordered children of folderPath ("" for the
// library root), paginated by limit and offset.
func (s *Service) FetchContents(folderPath string, limit, offset int) ([]database.Item, error) {
	return s.store.FetchChildren(folderPath, limit, offset)
}

// FetchFolders returns only the folder children of folderPath.
func (s *Service) FetchFolders(folderPath string) ([]database.Item, error) {
	return s.store.FetchFolders(folderPath)
}

// GetLastPlayed returns up to limit books ordered by most recent playback.
func (s *Service) GetLastPlayed(limit int) ([]database.Item, error) {
	return s.store.GetLastPlayed(limit)
}

// RenameItem updates an item's display title. The file on disk keeps its
// name; relative paths are derived from filenames, not titles.
func (s *Service) RenameItem(relativePath, newTitle string) error {
	item, err := s.store.GetItem(relativePath)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("item %s not found", relativePath)
	}
	item.Title = newTitle

	tx, err := s.store.Begin()
	if err != nil {
		return err
	}
	if err := tx.SaveItem(item); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

// RecordPlayback updates a book's playback state and marks it as the
// library's last-played item. A non-positive duration keeps the stored one.
func (s *Service) RecordPlayback(relativePath string, positionSec, durationSec float64, at time.Time) error {
	item, err := s.store.GetItem(relativePath)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("book %s not found", relativePath)
	}
	if !item.IsBook() {
		return fmt.Errorf("item %s is not a book", relativePath)
	}

	item.PositionSec = positionSec
	if durationSec > 0 {
		item.DurationSec = durationSec
	}
	item.IsFinished = item.DurationSec > 0 && positionSec >= item.DurationSec
	item.LastPlayedAt = &at

	tx, err := s.store.Begin()
	if err != nil {
		return err
	}
	if err := tx.SaveItem(item); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.SetLibraryLastBook(&item.RelativePath); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	return s.UpdateCompletionState(item.ParentPath)
}

// SetLastBook writes the library's last-played pointer.
func (s *Service) SetLastBook(relativePath *string) error {
	return s.store.SetLibraryLastBook(relativePath)
}

// UpdateCompletionState recomputes a folder's aggregated progress from its
// children and propagates the recomputation up to the library root. It must
// run after any mutation of the folder's children.
func (s *Service) UpdateCompletionState(folderPath string) error {
	for path := folderPath; path != ""; path = parentPathOf(path) {
		folder, err := s.store.GetItem(path)
		if err != nil {
			return err
		}
		if folder == nil || !folder.IsFolder() {
			continue
		}

		children, err := s.store.FetchChildren(path, 0, 0)
		if err != nil {
			return err
		}
		var total float64
		for _, child := range children {
			total += child.ProgressPercent()
		}
		if len(children) > 0 {
			folder.Progress = total / float64(len(children))
		} else {
			folder.Progress = 0
		}

		tx, err := s.store.Begin()
		if err != nil {
			return err
		}
		if err := tx.SaveItem(folder); err != nil {
			tx.Discard()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// CurrentTheme returns the library's active theme definition, or nil when no
// theme has been applied or its definition is gone.
func (s *Service) CurrentTheme() (*database.Theme, error) {
	lib, err := s.store.GetLibrary()
	if err != nil {
		return nil, err
	}
	if lib.CurrentTheme == "" {
		return nil, nil
	}
	return s.store.GetTheme(lib.CurrentTheme)
}

// ApplyTheme saves a theme definition and makes it the library's current one.
func (s *Service) ApplyTheme(theme *database.Theme) error {
	if theme.Title == "" {
		return fmt.Errorf("theme title is required")
	}
	if err := s.store.SaveTheme(theme); err != nil {
		return err
	}
	return s.store.SetLibraryTheme(theme.Title)
}

// BatchFailure records why one item of a batch operation was skipped.
type BatchFailure struct {
	RelativePath string `json:"relative_path"`
	Err          error  `json:"-"`
	Message      string `json:"error"`
}

// BatchResult is the partial-success outcome of a batch move or delete.
// Items that already succeeded are never rolled back when a later item
// fails; callers inspect both slices instead of a single pass/fail.
type BatchResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// Ok reports whether every item in the batch succeeded.
func (r *BatchResult) Ok() bool {
	return len(r.Failed) == 0
}

func (r *BatchResult) addFailure(relativePath string, err error) {
	r.Failed = append(r.Failed, BatchFailure{
		RelativePath: relativePath,
		Err:          err,
		Message:      err.Error(),
	})
}

// parentPathOf returns the parent segment of a relative path, "" for
// top-level items.
func parentPathOf(relativePath string) string {
	idx := strings.LastIndex(relativePath, "/")
	if idx < 0 {
		return ""
	}
	return relativePath[:idx]
}

// childRelativePath joins a parent path and a file name into the child's
// relative path.
func childRelativePath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}
