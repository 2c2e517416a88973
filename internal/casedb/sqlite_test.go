package casedb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleuthgo/galleryd/internal/datamodel"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "case.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoadCaseInfo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := &datamodel.Case{
		ID:        "case-1",
		Name:      "investigation",
		Directory: "/cases/investigation",
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.SaveCaseInfo(ctx, c))

	loaded, err := store.CaseInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.ID, loaded.ID)
	assert.Equal(t, c.Name, loaded.Name)
	assert.Equal(t, c.Directory, loaded.Directory)
}

func TestAddAndListDataSources(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ds1, err := store.AddDataSource(ctx, "case-1", "usb", "/evidence/usb")
	require.NoError(t, err)
	ds2, err := store.AddDataSource(ctx, "case-1", "laptop", "/evidence/laptop")
	require.NoError(t, err)
	assert.Greater(t, ds2.ID, ds1.ID)

	sources, err := store.ListDataSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "usb", sources[0].Name)
	assert.Equal(t, "/evidence/laptop", sources[1].Path)
}

func TestAddFileAssignsObjectID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f, err := store.AddFile(ctx, datamodel.File{
		DataSourceID: 1,
		Name:         "a.jpg",
		Path:         "photos/a.jpg",
		MIMEType:     "image/jpeg",
		Size:         1024,
		Known:        datamodel.KnownUnknown,
		SHA256:       "abc123",
	})
	require.NoError(t, err)
	require.NotZero(t, f.ObjID)

	loaded, err := store.FileByObjID(ctx, f.ObjID)
	require.NoError(t, err)
	assert.Equal(t, "photos/a.jpg", loaded.Path)
	assert.Equal(t, "image/jpeg", loaded.MIMEType)
	assert.Equal(t, datamodel.KnownUnknown, loaded.Known)
	assert.Equal(t, "abc123", loaded.SHA256)

	byPath, err := store.FileByPath(ctx, 1, "photos/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, f.ObjID, byPath.ObjID)
}

func TestFilesByDataSourceExcludesDirectories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddFile(ctx, datamodel.File{DataSourceID: 1, Name: "photos", Path: "photos", IsDir: true})
	require.NoError(t, err)
	_, err = store.AddFile(ctx, datamodel.File{DataSourceID: 1, Name: "a.jpg", Path: "photos/a.jpg", MIMEType: "image/jpeg"})
	require.NoError(t, err)
	_, err = store.AddFile(ctx, datamodel.File{DataSourceID: 2, Name: "b.jpg", Path: "b.jpg", MIMEType: "image/jpeg"})
	require.NoError(t, err)

	files, err := store.FilesByDataSource(ctx, 1)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "photos/a.jpg", files[0].Path)
}

func TestHasFilesWithNoMimeType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	undetermined, err := store.HasFilesWithNoMimeType(ctx, 1)
	require.NoError(t, err)
	assert.False(t, undetermined, "empty data source has nothing undetermined")

	_, err = store.AddFile(ctx, datamodel.File{DataSourceID: 1, Name: "a.bin", Path: "a.bin"})
	require.NoError(t, err)

	undetermined, err = store.HasFilesWithNoMimeType(ctx, 1)
	require.NoError(t, err)
	assert.True(t, undetermined)

	// Directories do not count.
	_, err = store.AddFile(ctx, datamodel.File{DataSourceID: 2, Name: "dir", Path: "dir", IsDir: true})
	require.NoError(t, err)
	undetermined, err = store.HasFilesWithNoMimeType(ctx, 2)
	require.NoError(t, err)
	assert.False(t, undetermined)
}

func TestAddAndDeleteTag(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tag := datamodel.Tag{Name: "Bookmark", ObjID: 5}
	require.NoError(t, store.AddTag(ctx, tag))
	require.NoError(t, store.DeleteTag(ctx, tag))
	// Deleting an absent tag is not an error.
	require.NoError(t, store.DeleteTag(ctx, tag))
}
