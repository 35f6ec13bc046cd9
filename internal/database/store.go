// file: internal/database/store.go
// version: 2.3.0
// guid: 8a1f4c2d-9e3b-4a7c-b5d8-0f6e2a9c4b1d

package database

import (
	"fmt"
	"time"
)

// ItemType discriminates the two item variants stored in the library tree.
type ItemType string

const (
	ItemTypeBook   ItemType = "book"
	ItemTypeFolder ItemType = "folder"
)

// BookmarkType identifies how a bookmark was created.
type BookmarkType string

const (
	BookmarkTypePlay      BookmarkType = "play"
	BookmarkTypeSkip      BookmarkType = "skip"
	BookmarkTypeUser      BookmarkType = "user"
	BookmarkTypeAutomatic BookmarkType = "automatic"
)

// Library is the singleton root of the item tree. Exactly one row exists;
// GetLibrary creates it on demand.
type Library struct {
	LastPlayedPath *string `json:"last_played_path,omitempty"`
	CurrentTheme   string  `json:"current_theme,omitempty"`
}

// Item is a node in the library tree, keyed by its relative path under the
// processed root. The Type tag selects the variant; consumers switch on it
// exhaustively instead of downcasting.
type Item struct {
	RelativePath     string   `json:"relative_path"`
	ParentPath       string   `json:"parent_path"` // "" means the library root
	Type             ItemType `json:"type"`
	Title            string   `json:"title"`
	OriginalFileName string   `json:"original_filename"`
	OrderRank        int      `json:"order_rank"`

	// Book playback state
	PositionSec  float64    `json:"position_seconds,omitempty"`
	DurationSec  float64    `json:"duration_seconds,omitempty"`
	Speed        float64    `json:"speed,omitempty"`
	IsFinished   bool       `json:"is_finished,omitempty"`
	LastPlayedAt *time.Time `json:"last_played_at,omitempty"`

	// Folder aggregate, recomputed from children after any child mutation
	Progress float64 `json:"progress,omitempty"`
}

// IsBook reports whether the item is a leaf book.
func (i *Item) IsBook() bool { return i.Type == ItemTypeBook }

// IsFolder reports whether the item is a container folder.
func (i *Item) IsFolder() bool { return i.Type == ItemTypeFolder }

// ProgressPercent returns the playback progress of a book, or the aggregated
// completion of a folder, in the range 0-100.
func (i *Item) ProgressPercent() float64 {
	switch i.Type {
	case ItemTypeFolder:
		return i.Progress
	case ItemTypeBook:
		if i.IsFinished {
			return 100
		}
		if i.DurationSec <= 0 {
			return 0
		}
		return i.PositionSec / i.DurationSec * 100
	default:
		return 0
	}
}

// Bookmark is a timed annotation on a book. Time is floored to whole seconds;
// (book, time, type) is the natural key, so creation is idempotent.
type Bookmark struct {
	BookPath  string       `json:"book_path"`
	TimeSec   int          `json:"time_seconds"`
	Type      BookmarkType `json:"type"`
	Note      string       `json:"note,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Theme is a named color palette referenced by the library row.
type Theme struct {
	Title              string `json:"title"`
	LightPrimaryHex    string `json:"light_primary_hex"`
	LightSecondaryHex  string `json:"light_secondary_hex"`
	LightAccentHex     string `json:"light_accent_hex"`
	DarkPrimaryHex     string `json:"dark_primary_hex"`
	DarkSecondaryHex   string `json:"dark_secondary_hex"`
	DarkAccentHex      string `json:"dark_accent_hex"`
	Locked             bool   `json:"locked"`
}

// Store defines the interface for durable library persistence.
// This abstraction supports both PebbleDB (default) and SQLite3 (opt-in).
// Query misses return (nil, nil): absence is a valid state, not an error.
// Reads always observe the last-committed snapshot; query results are value
// copies, never live references into the store.
type Store interface {
	// Lifecycle
	Close() error

	// Library singleton
	GetLibrary() (*Library, error)
	SetLibraryLastBook(relativePath *string) error
	SetLibraryTheme(title string) error

	// Items
	GetItem(relativePath string) (*Item, error)
	FetchChildren(parentPath string, limit, offset int) ([]Item, error)
	FetchFolders(parentPath string) ([]Item, error)
	CountChildren(parentPath string) (int, error)
	MaxChildRank(parentPath string) (int, error) // -1 when the parent is empty
	GetLastPlayed(limit int) ([]Item, error)
	AllItems() ([]Item, error)
	CountItems() (int, error)

	// Bookmarks
	GetBookmark(bookPath string, timeSec int, typ BookmarkType) (*Bookmark, error)
	GetBookmarks(bookPath string) ([]Bookmark, error)

	// Themes
	GetTheme(title string) (*Theme, error)
	SaveTheme(theme *Theme) error

	// Sync bookkeeping
	GetSyncTimestamp(folderPath string) (*time.Time, error)

	// Begin opens an explicit transaction. Multi-step tree mutations batch
	// their writes into one Tx and commit once.
	Begin() (Tx, error)
}

// Tx carries every mutation of a logical operation until the caller commits.
// A discarded Tx leaves the store untouched.
type Tx interface {
	SaveItem(item *Item) error
	DeleteItem(relativePath string) error
	SaveBookmark(bookmark *Bookmark) error
	DeleteBookmark(bookPath string, timeSec int, typ BookmarkType) error
	SetLibraryLastBook(relativePath *string) error
	SetSyncTimestamp(folderPath string, at time.Time) error
	Commit() error
	Discard() error
}

// InitializeStore opens the database store selected by configuration.
func InitializeStore(dbType, path string, enableSQLite bool) (Store, error) {
	switch dbType {
	case "sqlite", "sqlite3":
		if !enableSQLite {
			return nil, fmt.Errorf("SQLite3 is not enabled. To use SQLite3, you must explicitly enable it with --enable-sqlite3-i-know-the-risks or set 'enable_sqlite3_i_know_the_risks: true' in your config file. PebbleDB is the recommended database for production use")
		}
		store, err := NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		return store, nil
	case "pebble", "":
		// PebbleDB is the default
		store, err := NewPebbleStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PebbleDB store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: pebble, sqlite)", dbType)
	}
}
