// file: internal/command/router_test.go
// version: 1.0.0
// guid: 8f2a6d0c-3e9b-4c7a-b1d5-6e4f8a2c0d9b

package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laosuan/BookPlayer/internal/testutil"
)

type fakePlayer struct {
	loaded   *string
	loadedOf []string
	resumed  int
	rewinds  int
	forwards int
}

func (p *fakePlayer) CurrentBookPath() *string { return p.loaded }
func (p *fakePlayer) Load(path string) error {
	p.loadedOf = append(p.loadedOf, path)
	return nil
}
func (p *fakePlayer) Resume() error      { p.resumed++; return nil }
func (p *fakePlayer) SkipRewind() error  { p.rewinds++; return nil }
func (p *fakePlayer) SkipForward() error { p.forwards++; return nil }

type fakeDownloader struct {
	urls []string
}

func (d *fakeDownloader) Download(url string) error {
	d.urls = append(d.urls, url)
	return nil
}

type fakeSleepTimer struct {
	set      []int
	canceled int
}

func (s *fakeSleepTimer) Set(seconds int) error { s.set = append(s.set, seconds); return nil }
func (s *fakeSleepTimer) Cancel() error         { s.canceled++; return nil }

type fakeRefresher struct {
	refreshed int
}

func (r *fakeRefresher) Refresh() error { r.refreshed++; return nil }

func setupRouter(t *testing.T) (*Router, *testutil.Env, *fakePlayer, *fakeDownloader, *fakeSleepTimer, *fakeRefresher) {
	t.Helper()
	env := testutil.Setup(t)

	env.WriteBook("book.mp3")
	env.WriteBook("other.mp3")
	_, err := env.Service.ImportFiles(context.Background(), []string{
		env.RootDir + "/book.mp3",
		env.RootDir + "/other.mp3",
	}, "", nil)
	require.NoError(t, err)

	player := &fakePlayer{}
	downloader := &fakeDownloader{}
	sleepTimer := &fakeSleepTimer{}
	refresher := &fakeRefresher{}
	router := NewRouter(env.Service, player, downloader, sleepTimer, refresher)
	return router, env, player, downloader, sleepTimer, refresher
}

func TestPlayWithTargetLoadsBook(t *testing.T) {
	router, _, player, _, _, _ := setupRouter(t)

	require.NoError(t, router.Handle("bookplayer://play?identifier=book.mp3"))
	assert.Equal(t, []string{"book.mp3"}, player.loadedOf)
	assert.Equal(t, 0, player.resumed)
}

func TestPlayWithoutTargetResumesLastBook(t *testing.T) {
	router, env, player, _, _, _ := setupRouter(t)

	path := "other.mp3"
	require.NoError(t, env.Service.SetLastBook(&path))

	require.NoError(t, router.Handle("bookplayer://play"))
	assert.Equal(t, []string{"other.mp3"}, player.loadedOf)
}

func TestPlayAlreadyLoadedResumesInPlace(t *testing.T) {
	router, _, player, _, _, _ := setupRouter(t)

	loaded := "book.mp3"
	player.loaded = &loaded

	require.NoError(t, router.Handle("bookplayer://play?identifier=book.mp3"))
	assert.Empty(t, player.loadedOf)
	assert.Equal(t, 1, player.resumed)
}

func TestPlayMissingBookFails(t *testing.T) {
	router, _, _, _, _, _ := setupRouter(t)
	assert.Error(t, router.Handle("bookplayer://play?identifier=ghost.mp3"))
}

func TestDownloadDispatches(t *testing.T) {
	router, _, _, downloader, _, _ := setupRouter(t)

	require.NoError(t, router.Handle("bookplayer://download?url=https%3A%2F%2Fexample.com%2Fb.m4b"))
	assert.Equal(t, []string{"https://example.com/b.m4b"}, downloader.urls)

	assert.Error(t, router.Handle("bookplayer://download"))
}

func TestSleepSetAndCancel(t *testing.T) {
	router, _, _, _, sleepTimer, _ := setupRouter(t)

	require.NoError(t, router.Handle("bookplayer://sleep?seconds=600"))
	assert.Equal(t, []int{600}, sleepTimer.set)

	require.NoError(t, router.Handle("bookplayer://sleep?seconds=-1"))
	assert.Equal(t, 1, sleepTimer.canceled)

	assert.Error(t, router.Handle("bookplayer://sleep?seconds=-5"))
}

func TestRefreshAndSkips(t *testing.T) {
	router, _, player, _, _, refresher := setupRouter(t)

	require.NoError(t, router.Handle("bookplayer://refresh"))
	assert.Equal(t, 1, refresher.refreshed)

	require.NoError(t, router.Handle("bookplayer://skipRewind"))
	require.NoError(t, router.Handle("bookplayer://skipForward"))
	assert.Equal(t, 1, player.rewinds)
	assert.Equal(t, 1, player.forwards)
}

func TestMalformedCommandIsDropped(t *testing.T) {
	router, _, player, _, _, _ := setupRouter(t)

	assert.Error(t, router.Handle("bookplayer://teleport"))
	assert.Empty(t, player.loadedOf)
}

func TestMissingCollaboratorsDropQuietly(t *testing.T) {
	env := testutil.Setup(t)
	router := NewRouter(env.Service, nil, nil, nil, nil)

	assert.NoError(t, router.Handle("bookplayer://skipForward"))
	assert.NoError(t, router.Handle("bookplayer://refresh"))
	assert.NoError(t, router.Handle("bookplayer://sleep?seconds=60"))
}
