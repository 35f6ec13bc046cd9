// file: internal/database/sqlite_store.go
// version: 1.2.0
// guid: 6c8e1a9b-3d5f-4b2a-8e7c-1f9d4a6b3e0c

package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const itemSelectColumns = `
	relative_path, parent_path, type, title, original_filename, order_rank,
	position_sec, duration_sec, speed, is_finished, last_played_at, progress
`

func scanItem(scanner rowScanner, item *Item) error {
	var lastPlayedAt sql.NullTime
	err := scanner.Scan(
		&item.RelativePath, &item.ParentPath, &item.Type, &item.Title,
		&item.OriginalFileName, &item.OrderRank, &item.PositionSec,
		&item.DurationSec, &item.Speed, &item.IsFinished, &lastPlayedAt,
		&item.Progress,
	)
	if err != nil {
		return err
	}
	if lastPlayedAt.Valid {
		at := lastPlayedAt.Time
		item.LastPlayedAt = &at
	}
	return nil
}

// SQLiteStore implements the Store interface using SQLite3
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	store := &SQLiteStore{db: db}

	// Create tables
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

// createTables creates all required tables
func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS library (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_played_path TEXT,
		current_theme TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS items (
		relative_path TEXT PRIMARY KEY,
		parent_path TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		original_filename TEXT NOT NULL DEFAULT '',
		order_rank INTEGER NOT NULL DEFAULT 0,
		position_sec REAL NOT NULL DEFAULT 0,
		duration_sec REAL NOT NULL DEFAULT 0,
		speed REAL NOT NULL DEFAULT 0,
		is_finished INTEGER NOT NULL DEFAULT 0,
		last_played_at TIMESTAMP,
		progress REAL NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_items_parent_rank ON items(parent_path, order_rank);
	CREATE INDEX IF NOT EXISTS idx_items_last_played ON items(last_played_at) WHERE last_played_at IS NOT NULL;

	CREATE TABLE IF NOT EXISTS bookmarks (
		book_path TEXT NOT NULL,
		time_sec INTEGER NOT NULL,
		type TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (book_path, time_sec, type)
	);

	CREATE TABLE IF NOT EXISTS themes (
		title TEXT PRIMARY KEY,
		light_primary_hex TEXT NOT NULL DEFAULT '',
		light_secondary_hex TEXT NOT NULL DEFAULT '',
		light_accent_hex TEXT NOT NULL DEFAULT '',
		dark_primary_hex TEXT NOT NULL DEFAULT '',
		dark_secondary_hex TEXT NOT NULL DEFAULT '',
		dark_accent_hex TEXT NOT NULL DEFAULT '',
		locked INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sync_timestamps (
		folder_path TEXT PRIMARY KEY,
		synced_at TIMESTAMP NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Library operations

func (s *SQLiteStore) GetLibrary() (*Library, error) {
	var library Library
	var lastPlayed sql.NullString
	err := s.db.QueryRow("SELECT last_played_path, current_theme FROM library WHERE id = 1").
		Scan(&lastPlayed, &library.CurrentTheme)
	if err == sql.ErrNoRows {
		// The singleton row is structurally required: create it on demand.
		if _, err := s.db.Exec("INSERT INTO library (id) VALUES (1)"); err != nil {
			return nil, err
		}
		return &Library{}, nil
	}
	if err != nil {
		return nil, err
	}
	if lastPlayed.Valid {
		path := lastPlayed.String
		library.LastPlayedPath = &path
	}
	return &library, nil
}

func (s *SQLiteStore) SetLibraryLastBook(relativePath *string) error {
	if _, err := s.GetLibrary(); err != nil {
		return err
	}
	_, err := s.db.Exec("UPDATE library SET last_played_path = ? WHERE id = 1", relativePath)
	return err
}

func (s *SQLiteStore) SetLibraryTheme(title string) error {
	if _, err := s.GetLibrary(); err != nil {
		return err
	}
	_, err := s.db.Exec("UPDATE library SET current_theme = ? WHERE id = 1", title)
	return err
}

// Item operations

func (s *SQLiteStore) GetItem(relativePath string) (*Item, error) {
	var item Item
	query := fmt.Sprintf("SELECT %s FROM items WHERE relative_path = ?", itemSelectColumns)
	err := scanItem(s.db.QueryRow(query, relativePath), &item)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *SQLiteStore) fetchItems(query string, args ...interface{}) ([]Item, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var item Item
		if err := scanItem(rows, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) FetchChildren(parentPath string, limit, offset int) ([]Item, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query := fmt.Sprintf(`
		SELECT %s FROM items WHERE parent_path = ?
		ORDER BY order_rank ASC, relative_path ASC
		LIMIT ? OFFSET ?`, itemSelectColumns)
	return s.fetchItems(query, parentPath, limit, offset)
}

func (s *SQLiteStore) FetchFolders(parentPath string) ([]Item, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM items WHERE parent_path = ? AND type = ?
		ORDER BY order_rank ASC, relative_path ASC`, itemSelectColumns)
	return s.fetchItems(query, parentPath, string(ItemTypeFolder))
}

func (s *SQLiteStore) CountChildren(parentPath string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM items WHERE parent_path = ?", parentPath).Scan(&count)
	return count, err
}

func (s *SQLiteStore) MaxChildRank(parentPath string) (int, error) {
	var rank sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(order_rank) FROM items WHERE parent_path = ?", parentPath).Scan(&rank)
	if err != nil {
		return 0, err
	}
	if !rank.Valid {
		return -1, nil
	}
	return int(rank.Int64), nil
}

func (s *SQLiteStore) GetLastPlayed(limit int) ([]Item, error) {
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf(`
		SELECT %s FROM items
		WHERE type = ? AND last_played_at IS NOT NULL
		ORDER BY last_played_at DESC
		LIMIT ?`, itemSelectColumns)
	return s.fetchItems(query, string(ItemTypeBook), limit)
}

func (s *SQLiteStore) AllItems() ([]Item, error) {
	query := fmt.Sprintf("SELECT %s FROM items ORDER BY relative_path ASC", itemSelectColumns)
	return s.fetchItems(query)
}

func (s *SQLiteStore) CountItems() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM items").Scan(&count)
	return count, err
}

// Bookmark operations

func scanBookmark(scanner rowScanner, bookmark *Bookmark) error {
	return scanner.Scan(
		&bookmark.BookPath, &bookmark.TimeSec, &bookmark.Type,
		&bookmark.Note, &bookmark.CreatedAt,
	)
}

func (s *SQLiteStore) GetBookmark(bookPath string, timeSec int, typ BookmarkType) (*Bookmark, error) {
	var bookmark Bookmark
	err := scanBookmark(s.db.QueryRow(`
		SELECT book_path, time_sec, type, note, created_at FROM bookmarks
		WHERE book_path = ? AND time_sec = ? AND type = ?`,
		bookPath, timeSec, string(typ)), &bookmark)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bookmark, nil
}

func (s *SQLiteStore) GetBookmarks(bookPath string) ([]Bookmark, error) {
	rows, err := s.db.Query(`
		SELECT book_path, time_sec, type, note, created_at FROM bookmarks
		WHERE book_path = ? ORDER BY time_sec ASC`, bookPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookmarks := []Bookmark{}
	for rows.Next() {
		var bookmark Bookmark
		if err := scanBookmark(rows, &bookmark); err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, bookmark)
	}
	return bookmarks, rows.Err()
}

// Theme operations

func (s *SQLiteStore) GetTheme(title string) (*Theme, error) {
	var theme Theme
	err := s.db.QueryRow(`
		SELECT title, light_primary_hex, light_secondary_hex, light_accent_hex,
		       dark_primary_hex, dark_secondary_hex, dark_accent_hex, locked
		FROM themes WHERE title = ?`, title).Scan(
		&theme.Title, &theme.LightPrimaryHex, &theme.LightSecondaryHex,
		&theme.LightAccentHex, &theme.DarkPrimaryHex, &theme.DarkSecondaryHex,
		&theme.DarkAccentHex, &theme.Locked,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &theme, nil
}

func (s *SQLiteStore) SaveTheme(theme *Theme) error {
	_, err := s.db.Exec(`
		INSERT INTO themes (title, light_primary_hex, light_secondary_hex, light_accent_hex,
		                    dark_primary_hex, dark_secondary_hex, dark_accent_hex, locked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			light_primary_hex=excluded.light_primary_hex,
			light_secondary_hex=excluded.light_secondary_hex,
			light_accent_hex=excluded.light_accent_hex,
			dark_primary_hex=excluded.dark_primary_hex,
			dark_secondary_hex=excluded.dark_secondary_hex,
			dark_accent_hex=excluded.dark_accent_hex,
			locked=excluded.locked`,
		theme.Title, theme.LightPrimaryHex, theme.LightSecondaryHex,
		theme.LightAccentHex, theme.DarkPrimaryHex, theme.DarkSecondaryHex,
		theme.DarkAccentHex, theme.Locked,
	)
	return err
}

// Sync bookkeeping

func (s *SQLiteStore) GetSyncTimestamp(folderPath string) (*time.Time, error) {
	var at time.Time
	err := s.db.QueryRow("SELECT synced_at FROM sync_timestamps WHERE folder_path = ?", folderPath).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}

// Transactions

type sqliteTx struct {
	tx *sql.Tx
}

func (s *SQLiteStore) Begin() (Tx, error) {
	// Make sure the singleton exists before transactional updates touch it.
	if _, err := s.GetLibrary(); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

func (t *sqliteTx) SaveItem(item *Item) error {
	var lastPlayedAt interface{}
	if item.LastPlayedAt != nil {
		lastPlayedAt = *item.LastPlayedAt
	}
	_, err := t.tx.Exec(`
		INSERT INTO items (relative_path, parent_path, type, title, original_filename,
		                   order_rank, position_sec, duration_sec, speed, is_finished,
		                   last_played_at, progress)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(relative_path) DO UPDATE SET
			parent_path=excluded.parent_path,
			type=excluded.type,
			title=excluded.title,
			original_filename=excluded.original_filename,
			order_rank=excluded.order_rank,
			position_sec=excluded.position_sec,
			duration_sec=excluded.duration_sec,
			speed=excluded.speed,
			is_finished=excluded.is_finished,
			last_played_at=excluded.last_played_at,
			progress=excluded.progress`,
		item.RelativePath, item.ParentPath, string(item.Type), item.Title,
		item.OriginalFileName, item.OrderRank, item.PositionSec, item.DurationSec,
		item.Speed, item.IsFinished, lastPlayedAt, item.Progress,
	)
	return err
}

func (t *sqliteTx) DeleteItem(relativePath string) error {
	if _, err := t.tx.Exec("DELETE FROM items WHERE relative_path = ?", relativePath); err != nil {
		return err
	}
	// Bookmarks are owned by their book: cascade.
	_, err := t.tx.Exec("DELETE FROM bookmarks WHERE book_path = ?", relativePath)
	return err
}

func (t *sqliteTx) SaveBookmark(bookmark *Bookmark) error {
	_, err := t.tx.Exec(`
		INSERT INTO bookmarks (book_path, time_sec, type, note, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(book_path, time_sec, type) DO UPDATE SET note=excluded.note`,
		bookmark.BookPath, bookmark.TimeSec, string(bookmark.Type),
		bookmark.Note, bookmark.CreatedAt,
	)
	return err
}

func (t *sqliteTx) DeleteBookmark(bookPath string, timeSec int, typ BookmarkType) error {
	_, err := t.tx.Exec(
		"DELETE FROM bookmarks WHERE book_path = ? AND time_sec = ? AND type = ?",
		bookPath, timeSec, string(typ),
	)
	return err
}

func (t *sqliteTx) SetLibraryLastBook(relativePath *string) error {
	_, err := t.tx.Exec("UPDATE library SET last_played_path = ? WHERE id = 1", relativePath)
	return err
}

func (t *sqliteTx) SetSyncTimestamp(folderPath string, at time.Time) error {
	_, err := t.tx.Exec(`
		INSERT INTO sync_timestamps (folder_path, synced_at) VALUES (?, ?)
		ON CONFLICT(folder_path) DO UPDATE SET synced_at=excluded.synced_at`,
		folderPath, at,
	)
	return err
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Discard() error {
	return t.tx.Rollback()
}
