// file: internal/sync/engine.go
// version: 1.3.0
// guid: 8b3e6c1a-2f7d-4a9e-b5c8-0d4f9a6e3b7c

package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	stdsync "sync"
	"time"

	"github.com/laosuan/BookPlayer/internal/database"
	"github.com/laosuan/BookPlayer/internal/library"
	"github.com/laosuan/BookPlayer/internal/metrics"
)

// ErrReloadLastBook is returned when the remote library finished a sync with a
// last-played book that differs from the local one while no book is loaded in
// the player. The caller decides whether to load the remote book.
type ErrReloadLastBook struct {
	Path string
}

func (e *ErrReloadLastBook) Error() string {
	return fmt.Sprintf("remote last-played book changed, reload %q", e.Path)
}

// ErrDifferentLastBook is returned when the remote last-played book differs
// from the book currently loaded in the player. The conflict is surfaced, not
// resolved: local playback keeps running until the caller picks a side.
type ErrDifferentLastBook struct {
	Path string
}

func (e *ErrDifferentLastBook) Error() string {
	return fmt.Sprintf("remote last-played book %q differs from the loaded book", e.Path)
}

// RemoteItem is the wire representation of a library item on the sync backend.
type RemoteItem struct {
	RelativePath string             `json:"relativePath"`
	Type         database.ItemType  `json:"type"`
	Title        string             `json:"title"`
	PositionSec  float64            `json:"positionSec"`
	DurationSec  float64            `json:"durationSec"`
	Speed        float64            `json:"speed"`
	IsFinished   bool               `json:"isFinished"`
	LastPlayedAt *time.Time         `json:"lastPlayedAt,omitempty"`
}

// RemoteState is a snapshot of one folder's children on the sync backend.
type RemoteState struct {
	Items          []RemoteItem `json:"items"`
	LastPlayedPath *string      `json:"lastPlayedPath,omitempty"`
}

// RemoteClient talks to the sync backend.
type RemoteClient interface {
	// FetchContents returns the remote snapshot for one folder. The empty
	// path addresses the library root.
	FetchContents(ctx context.Context, folderPath string) (*RemoteState, error)
	// PushItem uploads one item's metadata to the backend.
	PushItem(ctx context.Context, item database.Item) error
}

// PlayerState reports what the local player currently has loaded. Nil means no
// player is attached, which the engine treats as idle.
type PlayerState interface {
	// CurrentBookPath returns the relative path of the loaded book, or nil
	// when the player is idle.
	CurrentBookPath() *string
}

type syncCall struct {
	done chan struct{}
	err  error
}

// Engine reconciles the local library tree with a remote snapshot, one folder
// at a time.
type Engine struct {
	svc         *library.Service
	client      RemoteClient
	player      PlayerState
	minInterval time.Duration
	logger      *log.Logger

	mu       stdsync.Mutex
	inflight map[string]*syncCall
}

// NewEngine builds a sync engine. player may be nil.
func NewEngine(svc *library.Service, client RemoteClient, player PlayerState, minInterval time.Duration) *Engine {
	return &Engine{
		svc:         svc,
		client:      client,
		player:      player,
		minInterval: minInterval,
		logger:      log.New(os.Stderr, "[sync] ", log.LstdFlags),
		inflight:    make(map[string]*syncCall),
	}
}

// CanSyncListContents reports whether a folder is due for a sync pass. A
// folder that has never synced is always due. ignoreLastTimestamp bypasses the
// interval gate for user-initiated refreshes.
func (e *Engine) CanSyncListContents(folderPath string, ignoreLastTimestamp bool) (bool, error) {
	if ignoreLastTimestamp {
		return true, nil
	}
	last, err := e.svc.Store().GetSyncTimestamp(folderPath)
	if err != nil {
		return false, fmt.Errorf("failed to read sync timestamp: %w", err)
	}
	if last == nil {
		return true, nil
	}
	return time.Since(*last) >= e.minInterval, nil
}

// SyncListContents reconciles one folder with the remote snapshot. Concurrent
// calls for the same folder share a single pass and its outcome. A pass inside
// the minimum interval is a no-op.
func (e *Engine) SyncListContents(ctx context.Context, folderPath string, ignoreLastTimestamp bool) error {
	due, err := e.CanSyncListContents(folderPath, ignoreLastTimestamp)
	if err != nil {
		return err
	}
	if !due {
		metrics.IncSyncPassSkipped()
		return nil
	}

	e.mu.Lock()
	if call, ok := e.inflight[folderPath]; ok {
		e.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &syncCall{done: make(chan struct{})}
	e.inflight[folderPath] = call
	e.mu.Unlock()

	call.err = e.syncFolder(ctx, folderPath)
	close(call.done)

	e.mu.Lock()
	delete(e.inflight, folderPath)
	e.mu.Unlock()

	return call.err
}

func (e *Engine) syncFolder(ctx context.Context, folderPath string) error {
	metrics.IncSyncPassStarted()

	remote, err := e.client.FetchContents(ctx, folderPath)
	if err != nil {
		return fmt.Errorf("failed to fetch remote contents for %q: %w", folderPath, err)
	}

	// Cancellation between fetch and apply leaves the store untouched.
	if err := ctx.Err(); err != nil {
		return err
	}

	pushes, err := e.applySnapshot(folderPath, remote)
	if err != nil {
		return err
	}

	for _, item := range pushes {
		if err := e.client.PushItem(ctx, item); err != nil {
			e.logger.Printf("push of %q failed: %v", item.RelativePath, err)
		}
	}

	if folderPath == "" {
		if err := e.checkLastBook(remote.LastPlayedPath); err != nil {
			return err
		}
	}
	return nil
}

// applySnapshot writes the remote delta in one transaction and returns the
// local items that are newer than their remote counterpart.
func (e *Engine) applySnapshot(folderPath string, remote *RemoteState) ([]database.Item, error) {
	store := e.svc.Store()

	locals, err := store.FetchChildren(folderPath, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch local children of %q: %w", folderPath, err)
	}
	localByPath := make(map[string]database.Item, len(locals))
	for _, it := range locals {
		localByPath[it.RelativePath] = it
	}

	maxRank, err := store.MaxChildRank(folderPath)
	if err != nil {
		return nil, err
	}
	nextRank := maxRank + 1

	tx, err := store.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Discard()

	var pushes []database.Item
	remotePaths := make(map[string]struct{}, len(remote.Items))
	for _, ri := range remote.Items {
		remotePaths[ri.RelativePath] = struct{}{}
		local, ok := localByPath[ri.RelativePath]
		if !ok {
			item := database.Item{
				RelativePath: ri.RelativePath,
				ParentPath:   folderPath,
				Type:         ri.Type,
				Title:        ri.Title,
				OrderRank:    nextRank,
				PositionSec:  ri.PositionSec,
				DurationSec:  ri.DurationSec,
				Speed:        ri.Speed,
				IsFinished:   ri.IsFinished,
				LastPlayedAt: ri.LastPlayedAt,
			}
			nextRank++
			if err := tx.SaveItem(&item); err != nil {
				return nil, err
			}
			continue
		}
		switch {
		case remoteNewer(ri.LastPlayedAt, local.LastPlayedAt):
			local.PositionSec = ri.PositionSec
			local.IsFinished = ri.IsFinished
			local.Speed = ri.Speed
			local.LastPlayedAt = ri.LastPlayedAt
			if err := tx.SaveItem(&local); err != nil {
				return nil, err
			}
		case remoteNewer(local.LastPlayedAt, ri.LastPlayedAt):
			pushes = append(pushes, local)
		}
	}

	// Local-only children: rows without a backing file are stale and get
	// removed, the rest are newer than the backend and queued for push.
	for _, local := range locals {
		if _, ok := remotePaths[local.RelativePath]; ok {
			continue
		}
		if _, statErr := os.Stat(e.svc.AbsolutePath(local.RelativePath)); os.IsNotExist(statErr) {
			if err := tx.DeleteItem(local.RelativePath); err != nil {
				return nil, err
			}
			continue
		}
		pushes = append(pushes, local)
	}

	if err := tx.SetSyncTimestamp(folderPath, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sync pass for %q: %w", folderPath, err)
	}

	sort.Slice(pushes, func(i, j int) bool { return pushes[i].RelativePath < pushes[j].RelativePath })
	return pushes, nil
}

// checkLastBook compares the remote last-played pointer against local state
// and surfaces a divergence as a typed error. It never resolves the conflict.
func (e *Engine) checkLastBook(remotePath *string) error {
	if remotePath == nil {
		return nil
	}
	lib, err := e.svc.GetLibrary()
	if err != nil {
		return err
	}
	if lib.LastPlayedPath != nil && *lib.LastPlayedPath == *remotePath {
		return nil
	}

	var loaded *string
	if e.player != nil {
		loaded = e.player.CurrentBookPath()
	}
	if loaded == nil {
		metrics.IncSyncConflict("reload")
		return &ErrReloadLastBook{Path: *remotePath}
	}
	if *loaded != *remotePath {
		metrics.IncSyncConflict("different")
		return &ErrDifferentLastBook{Path: *remotePath}
	}
	return nil
}

// SetLibraryLastBook records the library-wide last-played pointer.
func (e *Engine) SetLibraryLastBook(path *string) error {
	return e.svc.SetLastBook(path)
}

// ResolveLastBook applies the default policy to a sync outcome: a stale local
// pointer with an idle player adopts the remote path as the library's last
// book. The conflict is still returned so the caller can load the book; a
// divergence with a loaded player passes through untouched.
func (e *Engine) ResolveLastBook(err error) error {
	var reload *ErrReloadLastBook
	if errors.As(err, &reload) {
		if setErr := e.SetLibraryLastBook(&reload.Path); setErr != nil {
			return setErr
		}
	}
	return err
}

// Refresh runs a library-root pass with the default last-book policy. It
// serves the inbound refresh command, so a surfaced conflict is an outcome to
// log, not a failure of the refresh.
func (e *Engine) Refresh() error {
	err := e.ResolveLastBook(e.SyncListContents(context.Background(), "", false))
	var reload *ErrReloadLastBook
	var different *ErrDifferentLastBook
	switch {
	case errors.As(err, &reload):
		e.logger.Printf("last book updated to %q", reload.Path)
		return nil
	case errors.As(err, &different):
		e.logger.Printf("remote last book %q differs from the loaded book", different.Path)
		return nil
	}
	return err
}

func remoteNewer(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}
