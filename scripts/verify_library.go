// file: scripts/verify_library.go
// version: 1.0.0
// guid: 3e7c9a1d-5f2b-4d8e-9a6c-0b4f7e2d8c5a

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/laosuan/BookPlayer/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <processed-root> [db-path]", os.Args[0])
	}
	root := os.Args[1]
	dbPath := filepath.Join(root, ".bookplayer.db")
	if len(os.Args) > 2 {
		dbPath = os.Args[2]
	}

	store, err := database.NewPebbleStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	items, err := store.AllItems()
	if err != nil {
		log.Fatalf("Failed to list items: %v", err)
	}

	fmt.Printf("Found %d items in %s\n", len(items), dbPath)

	known := make(map[string]bool, len(items))
	var dangling []database.Item
	for _, item := range items {
		known[item.RelativePath] = true
		if _, err := os.Stat(filepath.Join(root, item.RelativePath)); os.IsNotExist(err) {
			dangling = append(dangling, item)
		}
	}

	if len(dangling) > 0 {
		fmt.Printf("\n%d records have no backing file:\n", len(dangling))
		for i, item := range dangling {
			fmt.Printf("%d. %s (%s)\n", i+1, item.RelativePath, item.Type)
		}
	}

	var untracked []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !known[rel] {
			untracked = append(untracked, rel)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to walk %s: %v", root, err)
	}

	if len(untracked) > 0 {
		fmt.Printf("\n%d files on disk are not tracked:\n", len(untracked))
		for i, rel := range untracked {
			fmt.Printf("%d. %s\n", i+1, rel)
		}
	}

	if len(dangling) == 0 && len(untracked) == 0 {
		fmt.Println("Library and database agree. Nothing to fix.")
	}
}
