// file: internal/library/move.go
// version: 1.5.0
// guid: 0b6d3f9a-8e2c-4a7d-b1f5-6c9e2a4d8b0e

package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/laosuan/BookPlayer/internal/database"
	"github.com/laosuan/BookPlayer/internal/fileops"
)

// MoveItems relocates items into the destination folder ("" for the library
// root), inserting at atIndex or appending when atIndex is nil.
//
// Each item goes through two ordered steps: the backing file moves on disk
// first, then the metadata reparents in one transaction. A failed file move
// leaves that item's metadata untouched and the operation continues with the
// next item; items already moved are not rolled back. The result reports the
// partial outcome per item.
func (s *Service) MoveItems(ctx context.Context, relativePaths []string, destFolderPath string, atIndex *int) (*BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if destFolderPath != "" {
		dest, err := s.store.GetItem(destFolderPath)
		if err != nil {
			return nil, err
		}
		if dest == nil || !dest.IsFolder() {
			return nil, fmt.Errorf("destination folder %s not found", destFolderPath)
		}
	}

	result := &BatchResult{Succeeded: []string{}, Failed: []BatchFailure{}}
	for _, relativePath := range relativePaths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.moveItem(relativePath, destFolderPath, atIndex); err != nil {
			result.addFailure(relativePath, err)
			continue
		}
		result.Succeeded = append(result.Succeeded, relativePath)
	}
	return result, nil
}

// moveItem performs the file-first, metadata-second move of a single item.
func (s *Service) moveItem(relativePath, destFolderPath string, atIndex *int) error {
	item, err := s.store.GetItem(relativePath)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("item %s not found", relativePath)
	}

	if item.ParentPath == destFolderPath {
		// Same parent: no file to move, only the sibling order changes.
		if atIndex == nil {
			return nil
		}
		return s.reorderItem(item, atIndex)
	}

	newRelativePath := childRelativePath(destFolderPath, item.OriginalFileName)
	if item.IsFolder() && strings.HasPrefix(destFolderPath+"/", item.RelativePath+"/") {
		return fmt.Errorf("cannot move folder %s into itself", relativePath)
	}

	// Step 1: physical relocation. On failure the metadata stays untouched,
	// so a failed file move never produces dangling rows.
	if err := fileops.MoveFile(s.AbsolutePath(item.RelativePath), s.AbsolutePath(newRelativePath)); err != nil {
		return fmt.Errorf("file move failed: %w", err)
	}

	// Step 2: reattach metadata.
	oldParent := item.ParentPath
	oldRelativePath := item.RelativePath

	tx, err := s.store.Begin()
	if err != nil {
		return err
	}

	rank, err := s.insertRank(tx, destFolderPath, atIndex)
	if err != nil {
		tx.Discard()
		return err
	}

	item.RelativePath = newRelativePath
	item.ParentPath = destFolderPath
	item.OrderRank = rank
	if err := s.reattachItem(tx, oldRelativePath, item); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if err := s.UpdateCompletionState(oldParent); err != nil {
		return err
	}
	return s.UpdateCompletionState(destFolderPath)
}

// reorderItem moves an item to atIndex within its current sibling list,
// renumbering only the siblings between its old and new position. The item
// takes the rank of the sibling it displaces, so sibling ranks stay unique.
func (s *Service) reorderItem(item *database.Item, atIndex *int) error {
	children, err := s.store.FetchChildren(item.ParentPath, 0, 0)
	if err != nil {
		return err
	}

	oldIndex := -1
	for i, child := range children {
		if child.RelativePath == item.RelativePath {
			oldIndex = i
			break
		}
	}
	if oldIndex < 0 {
		return fmt.Errorf("item %s not found under %q", item.RelativePath, item.ParentPath)
	}

	newIndex := *atIndex
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(children)-1 {
		newIndex = len(children) - 1
	}
	if newIndex == oldIndex {
		return nil
	}

	tx, err := s.store.Begin()
	if err != nil {
		return err
	}
	item.OrderRank = children[newIndex].OrderRank
	if newIndex < oldIndex {
		for i := newIndex; i < oldIndex; i++ {
			sibling := children[i]
			sibling.OrderRank++
			if err := tx.SaveItem(&sibling); err != nil {
				tx.Discard()
				return err
			}
		}
	} else {
		for i := oldIndex + 1; i <= newIndex; i++ {
			sibling := children[i]
			sibling.OrderRank--
			if err := tx.SaveItem(&sibling); err != nil {
				tx.Discard()
				return err
			}
		}
	}
	if err := tx.SaveItem(item); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

// insertRank returns the order rank for a new child of parentPath. With no
// index it appends; with an index it renumbers only the siblings at or after
// the insertion point.
func (s *Service) insertRank(tx database.Tx, parentPath string, atIndex *int) (int, error) {
	children, err := s.store.FetchChildren(parentPath, 0, 0)
	if err != nil {
		return 0, err
	}

	if atIndex == nil || *atIndex >= len(children) {
		maxRank, err := s.store.MaxChildRank(parentPath)
		if err != nil {
			return 0, err
		}
		return maxRank + 1, nil
	}

	index := *atIndex
	if index < 0 {
		index = 0
	}
	rank := children[index].OrderRank
	for i := index; i < len(children); i++ {
		sibling := children[i]
		sibling.OrderRank++
		if err := tx.SaveItem(&sibling); err != nil {
			return 0, err
		}
	}
	return rank, nil
}

// reattachItem rewrites an item's key from oldRelativePath to its updated
// relative path, carrying every descendant along when the item is a folder.
// Descendant files already moved with the folder's directory on disk; only
// their metadata keys need rewriting.
func (s *Service) reattachItem(tx database.Tx, oldRelativePath string, item *database.Item) error {
	if err := s.rekeyBookmarks(tx, oldRelativePath, item.RelativePath); err != nil {
		return err
	}
	if err := tx.DeleteItem(oldRelativePath); err != nil {
		return err
	}
	if err := tx.SaveItem(item); err != nil {
		return err
	}

	if !item.IsFolder() {
		return nil
	}

	descendants, err := s.descendantsOf(oldRelativePath)
	if err != nil {
		return err
	}
	oldPrefix := oldRelativePath + "/"
	newPrefix := item.RelativePath + "/"
	for _, descendant := range descendants {
		oldKey := descendant.RelativePath
		descendant.RelativePath = newPrefix + strings.TrimPrefix(oldKey, oldPrefix)
		descendant.ParentPath = newPrefix + strings.TrimPrefix(descendant.ParentPath+"/", oldPrefix)
		descendant.ParentPath = strings.TrimSuffix(descendant.ParentPath, "/")
		if err := s.rekeyBookmarks(tx, oldKey, descendant.RelativePath); err != nil {
			return err
		}
		if err := tx.DeleteItem(oldKey); err != nil {
			return err
		}
		if err := tx.SaveItem(&descendant); err != nil {
			return err
		}
	}
	return nil
}

// rekeyBookmarks carries a book's bookmarks over to its new relative path.
// The delete of the old item row cascades the old bookmark keys.
func (s *Service) rekeyBookmarks(tx database.Tx, oldPath, newPath string) error {
	bookmarks, err := s.store.GetBookmarks(oldPath)
	if err != nil {
		return err
	}
	for _, bookmark := range bookmarks {
		bookmark.BookPath = newPath
		if err := tx.SaveBookmark(&bookmark); err != nil {
			return err
		}
	}
	return nil
}

// descendantsOf returns every item whose relative path lives under
// folderPath, at any depth.
func (s *Service) descendantsOf(folderPath string) ([]database.Item, error) {
	all, err := s.store.AllItems()
	if err != nil {
		return nil, err
	}
	prefix := folderPath + "/"
	descendants := []database.Item{}
	for _, item := range all {
		if strings.HasPrefix(item.RelativePath, prefix) {
			descendants = append(descendants, item)
		}
	}
	return descendants, nil
}
