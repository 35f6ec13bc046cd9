// file: internal/database/store_test.go
// version: 1.1.0
// guid: 3f8c6a1d-9b4e-4d7a-8c2f-5e0b3a9d6c1e

package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openStores builds one store per backend so every conformance test runs
// against both.
func openStores(t *testing.T) map[string]Store {
	t.Helper()

	pebbleStore, err := NewPebbleStore(filepath.Join(t.TempDir(), "library.pebble"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pebbleStore.Close() })

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"pebble": pebbleStore,
		"sqlite": sqliteStore,
	}
}

func saveItems(t *testing.T, store Store, items ...*Item) {
	t.Helper()
	tx, err := store.Begin()
	require.NoError(t, err)
	for _, item := range items {
		require.NoError(t, tx.SaveItem(item))
	}
	require.NoError(t, tx.Commit())
}

func TestLibrarySingleton(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			lib, err := store.GetLibrary()
			require.NoError(t, err)
			require.NotNil(t, lib)
			assert.Nil(t, lib.LastPlayedPath)

			// Repeated reads hit the same singleton.
			again, err := store.GetLibrary()
			require.NoError(t, err)
			require.NotNil(t, again)

			path := "book.m4b"
			require.NoError(t, store.SetLibraryLastBook(&path))
			lib, err = store.GetLibrary()
			require.NoError(t, err)
			require.NotNil(t, lib.LastPlayedPath)
			assert.Equal(t, "book.m4b", *lib.LastPlayedPath)

			require.NoError(t, store.SetLibraryLastBook(nil))
			lib, err = store.GetLibrary()
			require.NoError(t, err)
			assert.Nil(t, lib.LastPlayedPath)
		})
	}
}

func TestGetItemMissReturnsNilNil(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			item, err := store.GetItem("does/not/exist.mp3")
			assert.NoError(t, err)
			assert.Nil(t, item)
		})
	}
}

func TestSaveAndGetItem(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			played := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
			original := &Item{
				RelativePath:     "series/book1.m4b",
				ParentPath:       "series",
				Type:             ItemTypeBook,
				Title:            "Book One",
				OriginalFileName: "book1.m4b",
				OrderRank:        0,
				PositionSec:      120.5,
				DurationSec:      3600,
				Speed:            1.25,
				LastPlayedAt:     &played,
			}
			saveItems(t, store, original)

			got, err := store.GetItem("series/book1.m4b")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, original.Title, got.Title)
			assert.Equal(t, original.PositionSec, got.PositionSec)
			assert.Equal(t, original.Speed, got.Speed)
			require.NotNil(t, got.LastPlayedAt)
			assert.True(t, played.Equal(*got.LastPlayedAt))

			// Mutating the returned copy must not leak into the store.
			got.Title = "mutated"
			fresh, err := store.GetItem("series/book1.m4b")
			require.NoError(t, err)
			assert.Equal(t, "Book One", fresh.Title)
		})
	}
}

func TestFetchChildrenOrderAndPagination(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			saveItems(t, store,
				&Item{RelativePath: "c.mp3", Type: ItemTypeBook, Title: "C", OrderRank: 2},
				&Item{RelativePath: "a.mp3", Type: ItemTypeBook, Title: "A", OrderRank: 0},
				&Item{RelativePath: "b.mp3", Type: ItemTypeBook, Title: "B", OrderRank: 1},
				&Item{RelativePath: "folder", Type: ItemTypeFolder, Title: "Folder", OrderRank: 3},
				&Item{RelativePath: "folder/nested.mp3", ParentPath: "folder", Type: ItemTypeBook, Title: "Nested", OrderRank: 0},
			)

			children, err := store.FetchChildren("", 0, 0)
			require.NoError(t, err)
			require.Len(t, children, 4)
			assert.Equal(t, "a.mp3", children[0].RelativePath)
			assert.Equal(t, "b.mp3", children[1].RelativePath)
			assert.Equal(t, "c.mp3", children[2].RelativePath)
			assert.Equal(t, "folder", children[3].RelativePath)

			page, err := store.FetchChildren("", 2, 1)
			require.NoError(t, err)
			require.Len(t, page, 2)
			assert.Equal(t, "b.mp3", page[0].RelativePath)
			assert.Equal(t, "c.mp3", page[1].RelativePath)

			nested, err := store.FetchChildren("folder", 0, 0)
			require.NoError(t, err)
			require.Len(t, nested, 1)
			assert.Equal(t, "folder/nested.mp3", nested[0].RelativePath)

			count, err := store.CountChildren("")
			require.NoError(t, err)
			assert.Equal(t, 4, count)

			folders, err := store.FetchFolders("")
			require.NoError(t, err)
			require.Len(t, folders, 1)
			assert.Equal(t, "folder", folders[0].RelativePath)
		})
	}
}

func TestColonInPathsDoesNotMixParents(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			saveItems(t, store,
				&Item{RelativePath: "a", Type: ItemTypeFolder, OrderRank: 0},
				&Item{RelativePath: "a:b", Type: ItemTypeFolder, OrderRank: 1},
				&Item{RelativePath: "a/inner.mp3", ParentPath: "a", Type: ItemTypeBook, OrderRank: 0},
				&Item{RelativePath: "a:b/other.mp3", ParentPath: "a:b", Type: ItemTypeBook, OrderRank: 7},
			)

			children, err := store.FetchChildren("a", 0, 0)
			require.NoError(t, err)
			require.Len(t, children, 1)
			assert.Equal(t, "a/inner.mp3", children[0].RelativePath)

			count, err := store.CountChildren("a")
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			rank, err := store.MaxChildRank("a")
			require.NoError(t, err)
			assert.Equal(t, 0, rank)

			rank, err = store.MaxChildRank("a:b")
			require.NoError(t, err)
			assert.Equal(t, 7, rank)
		})
	}
}

func TestBookmarksWithColonInBookPath(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			saveItems(t, store,
				&Item{RelativePath: "disc", Type: ItemTypeBook, OrderRank: 0},
				&Item{RelativePath: "disc:1.mp3", Type: ItemTypeBook, OrderRank: 1},
			)

			tx, err := store.Begin()
			require.NoError(t, err)
			require.NoError(t, tx.SaveBookmark(&Bookmark{BookPath: "disc:1.mp3", TimeSec: 5, Type: BookmarkTypeUser, CreatedAt: time.Now().UTC()}))
			require.NoError(t, tx.Commit())

			none, err := store.GetBookmarks("disc")
			require.NoError(t, err)
			assert.Empty(t, none)

			marks, err := store.GetBookmarks("disc:1.mp3")
			require.NoError(t, err)
			require.Len(t, marks, 1)
			assert.Equal(t, 5, marks[0].TimeSec)
		})
	}
}

func TestMaxChildRank(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			rank, err := store.MaxChildRank("")
			require.NoError(t, err)
			assert.Equal(t, -1, rank)

			saveItems(t, store,
				&Item{RelativePath: "a.mp3", Type: ItemTypeBook, OrderRank: 0},
				&Item{RelativePath: "b.mp3", Type: ItemTypeBook, OrderRank: 7},
			)

			rank, err = store.MaxChildRank("")
			require.NoError(t, err)
			assert.Equal(t, 7, rank)
		})
	}
}

func TestRankChangeUpdatesOrdering(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			saveItems(t, store,
				&Item{RelativePath: "a.mp3", Type: ItemTypeBook, OrderRank: 0},
				&Item{RelativePath: "b.mp3", Type: ItemTypeBook, OrderRank: 1},
			)

			moved, err := store.GetItem("a.mp3")
			require.NoError(t, err)
			moved.OrderRank = 5
			saveItems(t, store, moved)

			children, err := store.FetchChildren("", 0, 0)
			require.NoError(t, err)
			require.Len(t, children, 2)
			assert.Equal(t, "b.mp3", children[0].RelativePath)
			assert.Equal(t, "a.mp3", children[1].RelativePath)
		})
	}
}

func TestGetLastPlayed(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
			saveItems(t, store,
				&Item{RelativePath: "old.mp3", Type: ItemTypeBook, OrderRank: 0, LastPlayedAt: &older},
				&Item{RelativePath: "new.mp3", Type: ItemTypeBook, OrderRank: 1, LastPlayedAt: &newer},
				&Item{RelativePath: "never.mp3", Type: ItemTypeBook, OrderRank: 2},
			)

			recent, err := store.GetLastPlayed(10)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "new.mp3", recent[0].RelativePath)
			assert.Equal(t, "old.mp3", recent[1].RelativePath)

			limited, err := store.GetLastPlayed(1)
			require.NoError(t, err)
			require.Len(t, limited, 1)
			assert.Equal(t, "new.mp3", limited[0].RelativePath)
		})
	}
}

func TestBookmarkNaturalKey(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			saveItems(t, store, &Item{RelativePath: "book.mp3", Type: ItemTypeBook, OrderRank: 0})

			miss, err := store.GetBookmark("book.mp3", 12, BookmarkTypeUser)
			require.NoError(t, err)
			assert.Nil(t, miss)

			tx, err := store.Begin()
			require.NoError(t, err)
			require.NoError(t, tx.SaveBookmark(&Bookmark{
				BookPath:  "book.mp3",
				TimeSec:   12,
				Type:      BookmarkTypeUser,
				CreatedAt: time.Now().UTC(),
			}))
			require.NoError(t, tx.SaveBookmark(&Bookmark{
				BookPath:  "book.mp3",
				TimeSec:   12,
				Type:      BookmarkTypePlay,
				CreatedAt: time.Now().UTC(),
			}))
			require.NoError(t, tx.Commit())

			// Same time, different type: two distinct bookmarks.
			all, err := store.GetBookmarks("book.mp3")
			require.NoError(t, err)
			assert.Len(t, all, 2)

			got, err := store.GetBookmark("book.mp3", 12, BookmarkTypeUser)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, BookmarkTypeUser, got.Type)
		})
	}
}

func TestDeleteItemCascadesBookmarks(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			saveItems(t, store, &Item{RelativePath: "book.mp3", Type: ItemTypeBook, OrderRank: 0})

			tx, err := store.Begin()
			require.NoError(t, err)
			require.NoError(t, tx.SaveBookmark(&Bookmark{BookPath: "book.mp3", TimeSec: 30, Type: BookmarkTypeUser, CreatedAt: time.Now().UTC()}))
			require.NoError(t, tx.Commit())

			tx, err = store.Begin()
			require.NoError(t, err)
			require.NoError(t, tx.DeleteItem("book.mp3"))
			require.NoError(t, tx.Commit())

			item, err := store.GetItem("book.mp3")
			require.NoError(t, err)
			assert.Nil(t, item)

			bookmarks, err := store.GetBookmarks("book.mp3")
			require.NoError(t, err)
			assert.Empty(t, bookmarks)
		})
	}
}

func TestThemes(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			miss, err := store.GetTheme("Nope")
			require.NoError(t, err)
			assert.Nil(t, miss)

			theme := &Theme{Title: "Default / Dark", LightPrimaryHex: "FFFFFF", DarkPrimaryHex: "000000", Locked: true}
			require.NoError(t, store.SaveTheme(theme))

			got, err := store.GetTheme("Default / Dark")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "FFFFFF", got.LightPrimaryHex)
			assert.True(t, got.Locked)

			require.NoError(t, store.SetLibraryTheme("Default / Dark"))
			lib, err := store.GetLibrary()
			require.NoError(t, err)
			assert.Equal(t, "Default / Dark", lib.CurrentTheme)
		})
	}
}

func TestSyncTimestamps(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ts, err := store.GetSyncTimestamp("folder")
			require.NoError(t, err)
			assert.Nil(t, ts)

			at := time.Date(2026, 5, 20, 8, 0, 0, 0, time.UTC)
			tx, err := store.Begin()
			require.NoError(t, err)
			require.NoError(t, tx.SetSyncTimestamp("folder", at))
			require.NoError(t, tx.Commit())

			ts, err = store.GetSyncTimestamp("folder")
			require.NoError(t, err)
			require.NotNil(t, ts)
			assert.True(t, at.Equal(*ts))
		})
	}
}

func TestDiscardedTxLeavesStoreUntouched(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			tx, err := store.Begin()
			require.NoError(t, err)
			require.NoError(t, tx.SaveItem(&Item{RelativePath: "ghost.mp3", Type: ItemTypeBook, OrderRank: 0}))
			require.NoError(t, tx.Discard())

			item, err := store.GetItem("ghost.mp3")
			require.NoError(t, err)
			assert.Nil(t, item)

			count, err := store.CountItems()
			require.NoError(t, err)
			assert.Equal(t, 0, count)
		})
	}
}

func TestInitializeStoreSQLiteGuard(t *testing.T) {
	_, err := InitializeStore("sqlite", filepath.Join(t.TempDir(), "x.db"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enable-sqlite3-i-know-the-risks")

	store, err := InitializeStore("sqlite", filepath.Join(t.TempDir(), "x.db"), true)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = InitializeStore("cassandra", "", false)
	assert.Error(t, err)
}
