// file: internal/sync/http_client_test.go
// version: 1.0.0
// guid: 7e1c5b9a-3f8d-4a2e-b0c6-9d4f7a1e5c8b

package sync_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laosuan/BookPlayer/internal/database"
	libsync "github.com/laosuan/BookPlayer/internal/sync"
)

func TestHTTPClientFetchContents(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/library/contents", r.URL.Path)
		assert.Equal(t, "Author", r.URL.Query().Get("path"))
		_ = json.NewEncoder(w).Encode(libsync.RemoteState{
			Items: []libsync.RemoteItem{{RelativePath: "Author/book.mp3", Type: database.ItemTypeBook, Title: "Book"}},
		})
	}))
	defer backend.Close()

	client := libsync.NewHTTPClient(backend.URL)
	state, err := client.FetchContents(context.Background(), "Author")
	require.NoError(t, err)
	require.Len(t, state.Items, 1)
	assert.Equal(t, "Author/book.mp3", state.Items[0].RelativePath)
}

func TestHTTPClientFetchContentsErrorStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer backend.Close()

	client := libsync.NewHTTPClient(backend.URL)
	_, err := client.FetchContents(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPClientPushItem(t *testing.T) {
	var received libsync.RemoteItem
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/v1/library/items", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer backend.Close()

	client := libsync.NewHTTPClient(backend.URL)
	err := client.PushItem(context.Background(), database.Item{
		RelativePath: "book.mp3",
		Type:         database.ItemTypeBook,
		PositionSec:  12.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "book.mp3", received.RelativePath)
	assert.Equal(t, 12.5, received.PositionSec)
}
