// file: internal/server/handlers.go
// version: 1.2.0
// guid: 7b1e4a9d-3c6f-4e2b-8a5d-9f0c6b3a7e1d

package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/laosuan/BookPlayer/internal/database"
	"github.com/laosuan/BookPlayer/internal/library"
	"github.com/laosuan/BookPlayer/internal/operations"
)

// ListResponse provides a consistent format for paginated list responses.
// Total carries the unpaginated child count where the handler knows it.
type ListResponse struct {
	Items  any `json:"items"`
	Count  int `json:"count"`
	Total  int `json:"total,omitempty"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// trimItemPath strips the leading slash gin keeps on wildcard parameters.
func trimItemPath(raw string) string {
	if len(raw) > 0 && raw[0] == '/' {
		return raw[1:]
	}
	return raw
}

func (s *Server) listItems(c *gin.Context) {
	parent := c.Query("parent")
	limit := parseIntQuery(c, "limit", 0)
	offset := parseIntQuery(c, "offset", 0)

	items, err := s.svc.FetchContents(parent, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := s.svc.Store().CountChildren(parent)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: items, Count: len(items), Total: total, Limit: limit, Offset: offset})
}

func (s *Server) getItem(c *gin.Context) {
	path := trimItemPath(c.Param("path"))
	if c.Query("simple") == "true" {
		item, err := s.svc.GetSimpleItem(path)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if item == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		c.JSON(http.StatusOK, item)
		return
	}
	item, err := s.svc.GetItem(path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) getLastPlayed(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 20)
	items, err := s.svc.GetLastPlayed(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: items, Count: len(items), Limit: limit})
}

func (s *Server) setLastPlayed(c *gin.Context) {
	var req struct {
		RelativePath *string `json:"relativePath"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.svc.SetLastBook(req.RelativePath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "last played updated"})
}

func (s *Server) recordPlayback(c *gin.Context) {
	var req struct {
		RelativePath string  `json:"relativePath"`
		PositionSec  float64 `json:"positionSec"`
		DurationSec  float64 `json:"durationSec"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RelativePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.svc.RecordPlayback(req.RelativePath, req.PositionSec, req.DurationSec, time.Now().UTC()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "playback recorded"})
}

func (s *Server) moveItems(c *gin.Context) {
	var req struct {
		Paths []string `json:"paths"`
		Into  string   `json:"into"`
		At    *int     `json:"at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Paths) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paths are required"})
		return
	}

	result, err := s.svc.MoveItems(c.Request.Context(), req.Paths, req.Into, req.At)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) deleteItems(c *gin.Context) {
	var req struct {
		Paths []string `json:"paths"`
		Mode  string   `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Paths) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paths are required"})
		return
	}
	mode := library.DeleteMode(req.Mode)
	if req.Mode == "" {
		mode = library.DeleteModeDeep
	}
	if mode != library.DeleteModeDeep && mode != library.DeleteModeShallow {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be deep or shallow"})
		return
	}

	result, err := s.svc.DeleteItems(c.Request.Context(), req.Paths, mode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) renameItem(c *gin.Context) {
	path := trimItemPath(c.Param("path"))
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	if err := s.svc.RenameItem(path, req.Title); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "item renamed"})
}

func (s *Server) getTheme(c *gin.Context) {
	theme, err := s.svc.CurrentTheme()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if theme == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no theme set"})
		return
	}
	c.JSON(http.StatusOK, theme)
}

func (s *Server) setTheme(c *gin.Context) {
	var theme database.Theme
	if err := c.ShouldBindJSON(&theme); err != nil || theme.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "theme title is required"})
		return
	}
	if err := s.svc.ApplyTheme(&theme); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "theme applied"})
}

func (s *Server) searchItems(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	all, err := s.svc.Store().AllItems()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	titles := make([]string, len(all))
	for i, it := range all {
		titles[i] = it.Title
	}
	ranks := fuzzy.RankFindNormalizedFold(query, titles)
	matches := make([]database.Item, 0, len(ranks))
	for _, r := range ranks {
		matches = append(matches, all[r.OriginalIndex])
	}
	c.JSON(http.StatusOK, ListResponse{Items: matches, Count: len(matches)})
}

func (s *Server) listBookmarks(c *gin.Context) {
	book := c.Query("book")
	if book == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter book"})
		return
	}
	bookmarks, err := s.svc.GetBookmarks(book)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: bookmarks, Count: len(bookmarks)})
}

func (s *Server) createBookmark(c *gin.Context) {
	var req struct {
		Book string  `json:"book"`
		Time float64 `json:"time"`
		Type string  `json:"type"`
		Note string  `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Book == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	typ := database.BookmarkType(req.Type)
	if req.Type == "" {
		typ = database.BookmarkTypeUser
	}

	bookmark, err := s.svc.GetOrCreateBookmark(req.Book, req.Time, typ)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if req.Note != "" {
		if err := s.svc.AddBookmarkNote(req.Book, req.Time, typ, req.Note); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		bookmark.Note = req.Note
	}
	c.JSON(http.StatusOK, bookmark)
}

func (s *Server) deleteBookmark(c *gin.Context) {
	book := c.Query("book")
	typ := c.Query("type")
	at, err := strconv.ParseFloat(c.Query("time"), 64)
	if book == "" || typ == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "book, time and type parameters are required"})
		return
	}
	if err := s.svc.DeleteBookmark(book, at, database.BookmarkType(typ)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) handleCommand(c *gin.Context) {
	if s.commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "command routing not configured"})
		return
	}
	var req struct {
		Command string `json:"command"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Command == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.commands.Handle(req.Command); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "command dispatched"})
}

func (s *Server) startImport(c *gin.Context) {
	var req struct {
		Paths []string `json:"paths"`
		Into  string   `json:"into"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Paths) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paths are required"})
		return
	}

	id := operations.NewOperationID()
	err := s.queue.Enqueue(id, "import", operations.PriorityNormal, func(ctx context.Context, progress operations.ProgressReporter) error {
		count := 0
		_, importErr := s.svc.ImportFiles(ctx, req.Paths, req.Into, func(item database.Item) {
			count++
			_ = progress.UpdateProgress(count, 0, item.RelativePath)
		})
		return importErr
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (s *Server) startSync(c *gin.Context) {
	if s.engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync not configured"})
		return
	}
	var req struct {
		Folder string `json:"folder"`
		Force  bool   `json:"force"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id := operations.NewOperationID()
	err := s.queue.Enqueue(id, "sync", operations.PriorityNormal, func(ctx context.Context, progress operations.ProgressReporter) error {
		return s.engine.ResolveLastBook(s.engine.SyncListContents(ctx, req.Folder, req.Force))
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (s *Server) getOperationStatus(c *gin.Context) {
	id := c.Param("id")
	status := s.queue.GetStatus(id)
	if status == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "operation not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) cancelOperation(c *gin.Context) {
	id := c.Param("id")
	if err := s.queue.Cancel(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "operation canceled"})
}

func (s *Server) listActiveOperations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"operations": s.queue.ActiveOperations()})
}
