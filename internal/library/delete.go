// file: internal/library/delete.go
// version: 1.3.0
// guid: 1e8a4c6d-2f7b-4d9e-8a3c-5b0f7d2e9c4a

package library

import (
	"context"
	"fmt"

	"github.com/laosuan/BookPlayer/internal/database"
	"github.com/laosuan/BookPlayer/internal/fileops"
)

// DeleteMode selects between removing a container together with its
// contents and removing only the container.
type DeleteMode string

const (
	// DeleteModeDeep removes an item and every descendant, files included.
	DeleteModeDeep DeleteMode = "deep"
	// DeleteModeShallow removes a folder after promoting its direct
	// children to the folder's own parent scope.
	DeleteModeShallow DeleteMode = "shallow"
)

// DeleteItems removes items in the given mode. Like MoveItems it reports
// partial success per item; a failure on one item never rolls back the
// items already processed.
//
// Shallow mode on a plain book does not touch the file: the book is merely
// reparented to the library root when it currently lives inside a folder.
// Only folders get child promotion. The asymmetry is inherited behavior and
// kept on purpose.
func (s *Service) DeleteItems(ctx context.Context, relativePaths []string, mode DeleteMode) (*BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &BatchResult{Succeeded: []string{}, Failed: []BatchFailure{}}
	for _, relativePath := range relativePaths {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		item, err := s.store.GetItem(relativePath)
		if err != nil {
			result.addFailure(relativePath, err)
			continue
		}
		if item == nil {
			result.addFailure(relativePath, fmt.Errorf("item %s not found", relativePath))
			continue
		}

		parentPath := item.ParentPath
		switch item.Type {
		case database.ItemTypeFolder:
			err = s.deleteFolder(item, mode)
		case database.ItemTypeBook:
			err = s.deleteBook(item, mode)
		default:
			err = fmt.Errorf("item %s has unknown type %q", relativePath, item.Type)
		}
		if err != nil {
			result.addFailure(relativePath, err)
			continue
		}

		if err := s.clearLastBookIfGone(); err != nil {
			result.addFailure(relativePath, err)
			continue
		}
		if err := s.UpdateCompletionState(parentPath); err != nil {
			result.addFailure(relativePath, err)
			continue
		}
		result.Succeeded = append(result.Succeeded, relativePath)
	}
	return result, nil
}

// deleteFolder handles both modes for a folder item.
func (s *Service) deleteFolder(folder *database.Item, mode DeleteMode) error {
	if mode == DeleteModeShallow {
		if err := s.promoteChildren(folder); err != nil {
			return err
		}
	} else {
		children, err := s.store.FetchChildren(folder.RelativePath, 0, 0)
		if err != nil {
			return err
		}
		for _, child := range children {
			child := child
			switch child.Type {
			case database.ItemTypeFolder:
				if err := s.deleteFolder(&child, DeleteModeDeep); err != nil {
					return err
				}
			case database.ItemTypeBook:
				if err := s.deleteBook(&child, DeleteModeDeep); err != nil {
					return err
				}
			}
		}
	}

	// The folder is empty now (or its children were promoted): drop the
	// on-disk directory and the row.
	if err := fileops.RemoveDir(s.AbsolutePath(folder.RelativePath)); err != nil {
		return fmt.Errorf("failed to remove directory: %w", err)
	}

	tx, err := s.store.Begin()
	if err != nil {
		return err
	}
	if err := tx.DeleteItem(folder.RelativePath); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

// promoteChildren lifts every direct child of folder one level up, to the
// folder's parent or to the library root when the folder was top-level.
// Files move first; each child's metadata commits right after its file so
// disk and rows stay consistent even when a later child fails.
func (s *Service) promoteChildren(folder *database.Item) error {
	children, err := s.store.FetchChildren(folder.RelativePath, 0, 0)
	if err != nil {
		return err
	}

	for _, child := range children {
		child := child
		newRelativePath := childRelativePath(folder.ParentPath, child.OriginalFileName)

		if err := fileops.MoveFile(s.AbsolutePath(child.RelativePath), s.AbsolutePath(newRelativePath)); err != nil {
			return fmt.Errorf("failed to promote %s: %w", child.RelativePath, err)
		}

		tx, err := s.store.Begin()
		if err != nil {
			return err
		}
		maxRank, err := s.store.MaxChildRank(folder.ParentPath)
		if err != nil {
			tx.Discard()
			return err
		}

		oldRelativePath := child.RelativePath
		child.RelativePath = newRelativePath
		child.ParentPath = folder.ParentPath
		child.OrderRank = maxRank + 1
		if err := s.reattachItem(tx, oldRelativePath, &child); err != nil {
			tx.Discard()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// deleteBook removes a book's file and row in deep mode. In shallow mode
// the file stays put and the book is reparented to the library root when it
// has a folder parent; a top-level book is a no-op.
func (s *Service) deleteBook(book *database.Item, mode DeleteMode) error {
	if mode != DeleteModeDeep {
		if book.ParentPath == "" {
			return nil
		}
		maxRank, err := s.store.MaxChildRank("")
		if err != nil {
			return err
		}
		book.ParentPath = ""
		book.OrderRank = maxRank + 1

		tx, err := s.store.Begin()
		if err != nil {
			return err
		}
		if err := tx.SaveItem(book); err != nil {
			tx.Discard()
			return err
		}
		return tx.Commit()
	}

	if err := fileops.RemoveFile(s.AbsolutePath(book.RelativePath)); err != nil {
		return fmt.Errorf("failed to remove file: %w", err)
	}

	tx, err := s.store.Begin()
	if err != nil {
		return err
	}
	if err := tx.DeleteItem(book.RelativePath); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

// clearLastBookIfGone drops the library's last-played pointer when the
// pointed-at book no longer exists.
func (s *Service) clearLastBookIfGone() error {
	library, err := s.store.GetLibrary()
	if err != nil {
		return err
	}
	if library.LastPlayedPath == nil {
		return nil
	}
	item, err := s.store.GetItem(*library.LastPlayedPath)
	if err != nil {
		return err
	}
	if item == nil {
		return s.store.SetLibraryLastBook(nil)
	}
	return nil
}
