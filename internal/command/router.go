// file: internal/command/router.go
// version: 1.1.0
// guid: 0f7c3b8a-5d2e-4a1f-9c6b-4e8d0a3f7b1c

package command

import (
	"fmt"
	"log"
	"os"

	"github.com/laosuan/BookPlayer/internal/database"
	"github.com/laosuan/BookPlayer/internal/library"
)

// Player is the playback surface the router drives.
type Player interface {
	// CurrentBookPath returns the loaded book's relative path, or nil when
	// the player is idle.
	CurrentBookPath() *string
	// Load loads a book and starts playback.
	Load(relativePath string) error
	// Resume resumes the loaded book in place.
	Resume() error
	SkipRewind() error
	SkipForward() error
}

// Downloader fetches remote books referenced by download commands.
type Downloader interface {
	Download(url string) error
}

// SleepTimer controls the sleep countdown.
type SleepTimer interface {
	Set(seconds int) error
	Cancel() error
}

// Refresher re-syncs library contents on refresh commands.
type Refresher interface {
	Refresh() error
}

// Router dispatches parsed actions to its collaborators. Any collaborator may
// be nil; commands for a missing one are dropped with a log line.
type Router struct {
	svc        *library.Service
	player     Player
	downloader Downloader
	sleepTimer SleepTimer
	refresher  Refresher
	logger     *log.Logger
}

// NewRouter builds a router over the given collaborators.
func NewRouter(svc *library.Service, player Player, downloader Downloader, sleepTimer SleepTimer, refresher Refresher) *Router {
	return &Router{
		svc:        svc,
		player:     player,
		downloader: downloader,
		sleepTimer: sleepTimer,
		refresher:  refresher,
		logger:     log.New(os.Stderr, "[command] ", log.LstdFlags),
	}
}

// Handle parses and dispatches one raw command. Malformed commands are dropped
// with a log line and reported back, never fatal.
func (r *Router) Handle(raw string) error {
	action, err := Parse(raw)
	if err != nil {
		r.logger.Printf("dropping command: %v", err)
		return err
	}
	return r.Dispatch(action)
}

// Dispatch routes a parsed action to the right collaborator.
func (r *Router) Dispatch(action Action) error {
	switch action.Command {
	case CommandPlay:
		return r.handlePlay(action)
	case CommandDownload:
		return r.handleDownload(action)
	case CommandSleep:
		return r.handleSleep(action)
	case CommandRefresh:
		if r.refresher == nil {
			r.logger.Printf("no refresher attached, dropping refresh")
			return nil
		}
		return r.refresher.Refresh()
	case CommandSkipRewind:
		if r.player == nil {
			r.logger.Printf("no player attached, dropping skipRewind")
			return nil
		}
		return r.player.SkipRewind()
	case CommandSkipForward:
		if r.player == nil {
			r.logger.Printf("no player attached, dropping skipForward")
			return nil
		}
		return r.player.SkipForward()
	}
	return fmt.Errorf("unknown command %q", action.Command)
}

// handlePlay resolves the play target. No identifier means the library's last
// played book; a target that is already loaded resumes in place instead of
// reloading.
func (r *Router) handlePlay(action Action) error {
	if r.player == nil {
		r.logger.Printf("no player attached, dropping play")
		return nil
	}

	target := action.Param("identifier")
	if target == "" {
		lib, err := r.svc.GetLibrary()
		if err != nil {
			return fmt.Errorf("failed to resolve last played book: %w", err)
		}
		if lib.LastPlayedPath == nil {
			r.logger.Printf("play with no target and no last played book, dropping")
			return nil
		}
		target = *lib.LastPlayedPath
	}

	if loaded := r.player.CurrentBookPath(); loaded != nil && *loaded == target {
		return r.player.Resume()
	}

	item, err := r.svc.GetSimpleItem(target)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("book %q not found", target)
	}
	if item.Type != database.ItemTypeBook {
		return fmt.Errorf("cannot play folder %q", target)
	}
	return r.player.Load(target)
}

func (r *Router) handleDownload(action Action) error {
	if r.downloader == nil {
		r.logger.Printf("no downloader attached, dropping download")
		return nil
	}
	rawURL := action.Param("url")
	if rawURL == "" {
		return fmt.Errorf("download command missing url parameter")
	}
	return r.downloader.Download(rawURL)
}

func (r *Router) handleSleep(action Action) error {
	if r.sleepTimer == nil {
		r.logger.Printf("no sleep timer attached, dropping sleep")
		return nil
	}
	seconds, err := action.SleepSeconds()
	if err != nil {
		return err
	}
	if seconds == -1 {
		return r.sleepTimer.Cancel()
	}
	if seconds < 0 {
		return fmt.Errorf("invalid sleep duration %d", seconds)
	}
	return r.sleepTimer.Set(seconds)
}
