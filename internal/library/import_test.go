// file: internal/library/import_test.go
// version: 1.0.0
// guid: 9d3f7b1e-4a8c-4e6d-b2a9-7c5e0f8d3b6a

package library_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laosuan/BookPlayer/internal/database"
	"github.com/laosuan/BookPlayer/internal/testutil"
)

func TestImportMirrorsDiskTree(t *testing.T) {
	env := testutil.Setup(t)

	env.WriteBook("Author/book1.mp3")
	env.WriteBook("Author/book2.mp3")
	env.WriteBook("solo.mp3")

	created, err := env.Service.ImportFiles(context.Background(), []string{
		filepath.Join(env.RootDir, "Author"),
		filepath.Join(env.RootDir, "solo.mp3"),
	}, "", nil)
	require.NoError(t, err)
	assert.Len(t, created, 4)

	folder, err := env.Service.GetItem("Author")
	require.NoError(t, err)
	require.NotNil(t, folder)
	assert.True(t, folder.IsFolder())
	assert.Equal(t, "", folder.ParentPath)
	assert.Equal(t, 0, folder.OrderRank)

	solo, err := env.Service.GetItem("solo.mp3")
	require.NoError(t, err)
	require.NotNil(t, solo)
	assert.True(t, solo.IsBook())
	assert.Equal(t, 1, solo.OrderRank)

	children, err := env.Service.FetchContents("Author", 0, 0)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "Author/book1.mp3", children[0].RelativePath)
	assert.Equal(t, "Author/book2.mp3", children[1].RelativePath)
	assert.Equal(t, "Author", children[0].ParentPath)
	assert.Equal(t, 0, children[0].OrderRank)
	assert.Equal(t, 1, children[1].OrderRank)
}

func TestImportNestedFolders(t *testing.T) {
	env := testutil.Setup(t)

	env.WriteBook("Series/Volume 1/part1.m4b")
	env.WriteBook("Series/Volume 1/part2.m4b")
	env.WriteBook("Series/extra.m4b")

	_, err := env.Service.ImportFiles(context.Background(), []string{
		filepath.Join(env.RootDir, "Series"),
	}, "", nil)
	require.NoError(t, err)

	volume, err := env.Service.GetItem("Series/Volume 1")
	require.NoError(t, err)
	require.NotNil(t, volume)
	assert.True(t, volume.IsFolder())
	assert.Equal(t, "Series", volume.ParentPath)

	parts, err := env.Service.FetchContents("Series/Volume 1", 0, 0)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "Series/Volume 1/part1.m4b", parts[0].RelativePath)
}

func TestImportIntoExistingFolder(t *testing.T) {
	env := testutil.Setup(t)

	env.WriteBook("Shelf/old.mp3")
	_, err := env.Service.ImportFiles(context.Background(), []string{
		filepath.Join(env.RootDir, "Shelf"),
	}, "", nil)
	require.NoError(t, err)

	env.WriteBook("Shelf/new.mp3")
	_, err = env.Service.ImportFiles(context.Background(), []string{
		filepath.Join(env.RootDir, "Shelf", "new.mp3"),
	}, "Shelf", nil)
	require.NoError(t, err)

	children, err := env.Service.FetchContents("Shelf", 0, 0)
	require.NoError(t, err)
	require.Len(t, children, 2)
	// The appended item continues after the existing ranks.
	assert.Equal(t, "Shelf/new.mp3", children[1].RelativePath)
	assert.Greater(t, children[1].OrderRank, children[0].OrderRank)
}

func TestImportIntoMissingFolderFails(t *testing.T) {
	env := testutil.Setup(t)
	env.WriteBook("stray.mp3")

	_, err := env.Service.ImportFiles(context.Background(), []string{
		filepath.Join(env.RootDir, "stray.mp3"),
	}, "nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestImportCanceledContextPersistsNothing(t *testing.T) {
	env := testutil.Setup(t)
	env.WriteBook("a.mp3")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.Service.ImportFiles(ctx, []string{filepath.Join(env.RootDir, "a.mp3")}, "", nil)
	require.ErrorIs(t, err, context.Canceled)

	count, err := env.Store.CountItems()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestImportRejectsPathsOutsideRoot(t *testing.T) {
	env := testutil.Setup(t)

	outside := filepath.Join(env.TempDir, "outside.mp3")
	require.NoError(t, writeFile(outside))

	_, err := env.Service.ImportFiles(context.Background(), []string{outside}, "", nil)
	assert.Error(t, err)
}

func TestImportProgressCallback(t *testing.T) {
	env := testutil.Setup(t)
	env.WriteBook("one.mp3")
	env.WriteBook("two.mp3")

	var seen []string
	_, err := env.Service.ImportFiles(context.Background(), []string{
		filepath.Join(env.RootDir, "one.mp3"),
		filepath.Join(env.RootDir, "two.mp3"),
	}, "", func(item database.Item) {
		seen = append(seen, item.RelativePath)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one.mp3", "two.mp3"}, seen)
}
