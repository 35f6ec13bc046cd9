// file: internal/database/pebble_store.go
// version: 1.5.0
// guid: 2b9d6e3f-1a4c-4d8b-9f0e-5c7a3e2d8b4f

package database

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble/v2"
)

// PebbleStore implements the Store interface using PebbleDB (LSM key-value store)
//
// Key Schema (0x00 marks the NUL separator):
// - library:main                           -> Library JSON
// - item:<relative_path>                   -> Item JSON
// - child:<parent>0x00<rank>0x00<path>     -> relative_path (ordered children index)
// - bookmark:<book>0x00<type>0x00<time>    -> Bookmark JSON
// - theme:<title>                          -> Theme JSON
// - synctime:<folder_path>                 -> RFC3339 timestamp
//
// Path segments are NUL-terminated because NUL is the one byte a file path
// cannot contain, so a prefix scan for parent "a" never swallows children of
// "a:b". Rank and time segments are zero-padded so lexicographic key order
// matches numeric order.

type PebbleStore struct {
	db *pebble.DB
}

const libraryKey = "library:main"

// NewPebbleStore creates a new PebbleDB store
func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open PebbleDB: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the database
func (p *PebbleStore) Close() error {
	return p.db.Close()
}

// Key helpers

func itemKey(relativePath string) []byte {
	return []byte(fmt.Sprintf("item:%s", relativePath))
}

func childKey(parentPath string, rank int, relativePath string) []byte {
	return []byte(fmt.Sprintf("child:%s\x00%010d\x00%s", parentPath, rank, relativePath))
}

func childPrefix(parentPath string) []byte {
	return []byte(fmt.Sprintf("child:%s\x00", parentPath))
}

func bookmarkKey(bookPath string, typ BookmarkType, timeSec int) []byte {
	return []byte(fmt.Sprintf("bookmark:%s\x00%s\x00%08d", bookPath, typ, timeSec))
}

func bookmarkPrefix(bookPath string) []byte {
	return []byte(fmt.Sprintf("bookmark:%s\x00", bookPath))
}

func themeKey(title string) []byte {
	return []byte(fmt.Sprintf("theme:%s", title))
}

func syncTimestampKey(folderPath string) []byte {
	return []byte(fmt.Sprintf("synctime:%s", folderPath))
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// getJSON unmarshals the value at key into out, treating a miss as absence.
func (p *PebbleStore) getJSON(key []byte, out interface{}) (bool, error) {
	value, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	if err := json.Unmarshal(value, out); err != nil {
		return false, err
	}
	return true, nil
}

// Library operations

func (p *PebbleStore) GetLibrary() (*Library, error) {
	var library Library
	found, err := p.getJSON([]byte(libraryKey), &library)
	if err != nil {
		return nil, err
	}
	if !found {
		// The singleton row is structurally required: create it on demand.
		library = Library{}
		data, err := json.Marshal(&library)
		if err != nil {
			return nil, err
		}
		if err := p.db.Set([]byte(libraryKey), data, pebble.Sync); err != nil {
			return nil, err
		}
	}
	return &library, nil
}

func (p *PebbleStore) SetLibraryLastBook(relativePath *string) error {
	tx, err := p.Begin()
	if err != nil {
		return err
	}
	if err := tx.SetLibraryLastBook(relativePath); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

func (p *PebbleStore) SetLibraryTheme(title string) error {
	library, err := p.GetLibrary()
	if err != nil {
		return err
	}
	library.CurrentTheme = title
	data, err := json.Marshal(library)
	if err != nil {
		return err
	}
	return p.db.Set([]byte(libraryKey), data, pebble.Sync)
}

// Item operations

func (p *PebbleStore) GetItem(relativePath string) (*Item, error) {
	var item Item
	found, err := p.getJSON(itemKey(relativePath), &item)
	if err != nil || !found {
		return nil, err
	}
	return &item, nil
}

func (p *PebbleStore) FetchChildren(parentPath string, limit, offset int) ([]Item, error) {
	prefix := childPrefix(parentPath)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	items := []Item{}
	skipped := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if skipped < offset {
			skipped++
			continue
		}
		if limit > 0 && len(items) >= limit {
			break
		}
		child, err := p.GetItem(string(iter.Value()))
		if err != nil {
			return nil, err
		}
		if child == nil {
			// Stale index entry; skip rather than fail the whole query.
			continue
		}
		items = append(items, *child)
	}
	return items, nil
}

func (p *PebbleStore) FetchFolders(parentPath string) ([]Item, error) {
	children, err := p.FetchChildren(parentPath, 0, 0)
	if err != nil {
		return nil, err
	}
	folders := []Item{}
	for _, child := range children {
		if child.IsFolder() {
			folders = append(folders, child)
		}
	}
	return folders, nil
}

func (p *PebbleStore) CountChildren(parentPath string) (int, error) {
	prefix := childPrefix(parentPath)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	count := 0
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	return count, nil
}

func (p *PebbleStore) MaxChildRank(parentPath string) (int, error) {
	prefix := childPrefix(parentPath)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return -1, nil
	}
	// Rank segment is fixed width right after the prefix.
	key := iter.Key()
	rankStart := len(prefix)
	if len(key) < rankStart+10 {
		return 0, fmt.Errorf("malformed child index key: %s", key)
	}
	rank, err := strconv.Atoi(string(key[rankStart : rankStart+10]))
	if err != nil {
		return 0, fmt.Errorf("malformed child index key: %s", key)
	}
	return rank, nil
}

func (p *PebbleStore) AllItems() ([]Item, error) {
	prefix := []byte("item:")
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	items := []Item{}
	for iter.First(); iter.Valid(); iter.Next() {
		var item Item
		if err := json.Unmarshal(iter.Value(), &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (p *PebbleStore) CountItems() (int, error) {
	items, err := p.AllItems()
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (p *PebbleStore) GetLastPlayed(limit int) ([]Item, error) {
	items, err := p.AllItems()
	if err != nil {
		return nil, err
	}
	played := []Item{}
	for _, item := range items {
		if item.IsBook() && item.LastPlayedAt != nil {
			played = append(played, item)
		}
	}
	sort.Slice(played, func(i, j int) bool {
		return played[i].LastPlayedAt.After(*played[j].LastPlayedAt)
	})
	if limit > 0 && len(played) > limit {
		played = played[:limit]
	}
	return played, nil
}

// Bookmark operations

func (p *PebbleStore) GetBookmark(bookPath string, timeSec int, typ BookmarkType) (*Bookmark, error) {
	var bookmark Bookmark
	found, err := p.getJSON(bookmarkKey(bookPath, typ, timeSec), &bookmark)
	if err != nil || !found {
		return nil, err
	}
	return &bookmark, nil
}

func (p *PebbleStore) GetBookmarks(bookPath string) ([]Bookmark, error) {
	prefix := bookmarkPrefix(bookPath)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	bookmarks := []Bookmark{}
	for iter.First(); iter.Valid(); iter.Next() {
		var bookmark Bookmark
		if err := json.Unmarshal(iter.Value(), &bookmark); err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, bookmark)
	}
	sort.Slice(bookmarks, func(i, j int) bool {
		return bookmarks[i].TimeSec < bookmarks[j].TimeSec
	})
	return bookmarks, nil
}

// Theme operations

func (p *PebbleStore) GetTheme(title string) (*Theme, error) {
	var theme Theme
	found, err := p.getJSON(themeKey(title), &theme)
	if err != nil || !found {
		return nil, err
	}
	return &theme, nil
}

func (p *PebbleStore) SaveTheme(theme *Theme) error {
	data, err := json.Marshal(theme)
	if err != nil {
		return err
	}
	return p.db.Set(themeKey(theme.Title), data, pebble.Sync)
}

// Sync bookkeeping

func (p *PebbleStore) GetSyncTimestamp(folderPath string) (*time.Time, error) {
	value, closer, err := p.db.Get(syncTimestampKey(folderPath))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	at, err := time.Parse(time.RFC3339Nano, string(value))
	if err != nil {
		return nil, err
	}
	return &at, nil
}

// Transactions

// pebbleTx batches mutations into an indexed pebble batch so later steps in
// the same transaction observe earlier writes.
type pebbleTx struct {
	store *PebbleStore
	batch *pebble.Batch
}

func (p *PebbleStore) Begin() (Tx, error) {
	return &pebbleTx{store: p, batch: p.db.NewIndexedBatch()}, nil
}

func (t *pebbleTx) getJSON(key []byte, out interface{}) (bool, error) {
	value, closer, err := t.batch.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	if err := json.Unmarshal(value, out); err != nil {
		return false, err
	}
	return true, nil
}

func (t *pebbleTx) SaveItem(item *Item) error {
	// Drop the previous child-index entry when the parent or rank moved.
	var existing Item
	found, err := t.getJSON(itemKey(item.RelativePath), &existing)
	if err != nil {
		return err
	}
	if found && (existing.ParentPath != item.ParentPath || existing.OrderRank != item.OrderRank) {
		if err := t.batch.Delete(childKey(existing.ParentPath, existing.OrderRank, existing.RelativePath), nil); err != nil {
			return err
		}
	}

	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	if err := t.batch.Set(itemKey(item.RelativePath), data, nil); err != nil {
		return err
	}
	return t.batch.Set(childKey(item.ParentPath, item.OrderRank, item.RelativePath), []byte(item.RelativePath), nil)
}

func (t *pebbleTx) DeleteItem(relativePath string) error {
	var existing Item
	found, err := t.getJSON(itemKey(relativePath), &existing)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if err := t.batch.Delete(childKey(existing.ParentPath, existing.OrderRank, relativePath), nil); err != nil {
		return err
	}
	if err := t.batch.Delete(itemKey(relativePath), nil); err != nil {
		return err
	}

	// Bookmarks are owned by their book: cascade.
	if existing.IsBook() {
		prefix := bookmarkPrefix(relativePath)
		if err := t.batch.DeleteRange(prefix, keyUpperBound(prefix), nil); err != nil {
			return err
		}
	}
	return nil
}

func (t *pebbleTx) SaveBookmark(bookmark *Bookmark) error {
	data, err := json.Marshal(bookmark)
	if err != nil {
		return err
	}
	return t.batch.Set(bookmarkKey(bookmark.BookPath, bookmark.Type, bookmark.TimeSec), data, nil)
}

func (t *pebbleTx) DeleteBookmark(bookPath string, timeSec int, typ BookmarkType) error {
	return t.batch.Delete(bookmarkKey(bookPath, typ, timeSec), nil)
}

func (t *pebbleTx) SetLibraryLastBook(relativePath *string) error {
	var library Library
	if _, err := t.getJSON([]byte(libraryKey), &library); err != nil {
		return err
	}
	library.LastPlayedPath = relativePath
	data, err := json.Marshal(&library)
	if err != nil {
		return err
	}
	return t.batch.Set([]byte(libraryKey), data, nil)
}

func (t *pebbleTx) SetSyncTimestamp(folderPath string, at time.Time) error {
	return t.batch.Set(syncTimestampKey(folderPath), []byte(at.Format(time.RFC3339Nano)), nil)
}

func (t *pebbleTx) Commit() error {
	defer t.batch.Close()
	return t.batch.Commit(pebble.Sync)
}

func (t *pebbleTx) Discard() error {
	return t.batch.Close()
}
