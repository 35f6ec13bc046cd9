// file: internal/library/bookmarks.go
// version: 1.1.0
// guid: 6f2b8d4a-9c3e-4f1b-a7d2-0e5c8b3f6a9d

package library

import (
	"fmt"
	"math"
	"time"

	"github.com/laosuan/BookPlayer/internal/database"
)

// GetOrCreateBookmark returns the bookmark of the given book at the floored
// time and type, creating it when absent. Creation is idempotent: two calls
// with times that floor to the same second resolve to the same bookmark.
func (s *Service) GetOrCreateBookmark(bookPath string, at float64, typ database.BookmarkType) (*database.Bookmark, error) {
	timeSec := int(math.Floor(at))

	existing, err := s.store.GetBookmark(bookPath, timeSec, typ)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	book, err := s.store.GetItem(bookPath)
	if err != nil {
		return nil, err
	}
	if book == nil || !book.IsBook() {
		return nil, fmt.Errorf("book %s not found", bookPath)
	}

	bookmark := &database.Bookmark{
		BookPath:  bookPath,
		TimeSec:   timeSec,
		Type:      typ,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.store.Begin()
	if err != nil {
		return nil, err
	}
	if err := tx.SaveBookmark(bookmark); err != nil {
		tx.Discard()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return bookmark, nil
}

// AddBookmarkNote overwrites the note on an existing bookmark.
func (s *Service) AddBookmarkNote(bookPath string, at float64, typ database.BookmarkType, note string) error {
	timeSec := int(math.Floor(at))

	bookmark, err := s.store.GetBookmark(bookPath, timeSec, typ)
	if err != nil {
		return err
	}
	if bookmark == nil {
		return fmt.Errorf("bookmark not found for %s at %ds", bookPath, timeSec)
	}
	bookmark.Note = note

	tx, err := s.store.Begin()
	if err != nil {
		return err
	}
	if err := tx.SaveBookmark(bookmark); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

// DeleteBookmark detaches a bookmark from its book and removes the row.
// Deleting an absent bookmark is a no-op.
func (s *Service) DeleteBookmark(bookPath string, at float64, typ database.BookmarkType) error {
	timeSec := int(math.Floor(at))

	tx, err := s.store.Begin()
	if err != nil {
		return err
	}
	if err := tx.DeleteBookmark(bookPath, timeSec, typ); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

// GetBookmarks returns a book's bookmarks ordered by time.
func (s *Service) GetBookmarks(bookPath string) ([]database.Bookmark, error) {
	return s.store.GetBookmarks(bookPath)
}
