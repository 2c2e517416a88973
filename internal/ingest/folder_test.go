package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleuthgo/galleryd/internal/casedb"
	"github.com/sleuthgo/galleryd/internal/datamodel"
	"github.com/sleuthgo/galleryd/internal/events"
)

var jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestFolderIngestorOneShotScan(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "photo.jpg"), jpegHeader, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "notes.txt"), []byte("plain text"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "sub", "clip.txt"), []byte("nested"), 0644))

	store, err := casedb.OpenStore(filepath.Join(t.TempDir(), "case.db"))
	require.NoError(t, err)
	defer store.Close()

	dispatcher := events.NewDispatcher()
	var jobEvents []events.JobEvent
	var moduleEvents []events.ModuleEvent
	dispatcher.SubscribeJob(func(ev events.JobEvent) { jobEvents = append(jobEvents, ev) })
	dispatcher.SubscribeModule(func(ev events.ModuleEvent) { moduleEvents = append(moduleEvents, ev) })

	manager := NewManager(dispatcher, nil)
	ds := datamodel.DataSource{ID: 1, Name: "usb", Path: srcDir}

	fing, err := NewFolderIngestor(manager, store, ds, FolderOptions{})
	require.NoError(t, err)
	require.NoError(t, fing.Run(context.Background()))

	// Job start and completion bracket the scan.
	require.Len(t, jobEvents, 2)
	_, ok := jobEvents[0].(events.AnalysisStarted)
	assert.True(t, ok)
	_, ok = jobEvents[1].(events.AnalysisCompleted)
	assert.True(t, ok)

	files, err := store.FilesByDataSource(context.Background(), ds.ID)
	require.NoError(t, err)
	require.Len(t, files, 3)

	byPath := make(map[string]datamodel.File)
	for _, f := range files {
		byPath[f.Path] = f
	}
	photo, ok := byPath["photo.jpg"]
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", photo.MIMEType)
	assert.Equal(t, sha256Hex(jpegHeader), photo.SHA256)
	assert.Contains(t, byPath, "notes.txt")
	assert.Contains(t, byPath, "sub/clip.txt")

	// One file-done per file, plus an EXIF artifact batch for the JPEG.
	var fileDone, exifBatches, hashBatches int
	for _, ev := range moduleEvents {
		switch ev := ev.(type) {
		case events.FileDone:
			fileDone++
		case events.DataAdded:
			switch ev.Type {
			case datamodel.ArtifactEXIFMetadata:
				exifBatches++
			case datamodel.ArtifactHashSetHit:
				hashBatches++
			}
		}
	}
	assert.Equal(t, 3, fileDone)
	assert.Equal(t, 1, exifBatches)
	assert.Equal(t, 0, hashBatches)
}

func TestFolderIngestorHashSetHit(t *testing.T) {
	srcDir := t.TempDir()
	content := []byte("known bad payload")
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "payload.bin"), content, 0644))

	hashSet := filepath.Join(t.TempDir(), "hashes.txt")
	require.NoError(t, os.WriteFile(hashSet, []byte(fmt.Sprintf("%s,known_bad\n", sha256Hex(content))), 0644))

	store, err := casedb.OpenStore(filepath.Join(t.TempDir(), "case.db"))
	require.NoError(t, err)
	defer store.Close()

	dispatcher := events.NewDispatcher()
	var hashHits []events.DataAdded
	dispatcher.SubscribeModule(func(ev events.ModuleEvent) {
		if e, ok := ev.(events.DataAdded); ok && e.Type == datamodel.ArtifactHashSetHit {
			hashHits = append(hashHits, e)
		}
	})

	manager := NewManager(dispatcher, nil)
	require.NoError(t, manager.LoadKnownHashes(hashSet))

	ds := datamodel.DataSource{ID: 1, Name: "usb", Path: srcDir}
	fing, err := NewFolderIngestor(manager, store, ds, FolderOptions{})
	require.NoError(t, err)
	require.NoError(t, fing.Run(context.Background()))

	files, err := store.FilesByDataSource(context.Background(), ds.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, datamodel.KnownBad, files[0].Known)

	require.Len(t, hashHits, 1)
	assert.Equal(t, files[0].ObjID, hashHits[0].Artifacts[0].ObjID)
}

func TestFolderIngestorSkipsAlreadySeenFiles(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("x"), 0644))

	store, err := casedb.OpenStore(filepath.Join(t.TempDir(), "case.db"))
	require.NoError(t, err)
	defer store.Close()

	manager := NewManager(events.NewDispatcher(), nil)
	ds := datamodel.DataSource{ID: 1, Name: "usb", Path: srcDir}
	fing, err := NewFolderIngestor(manager, store, ds, FolderOptions{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, fing.scanOnce(ctx))
	require.NoError(t, fing.scanOnce(ctx))

	files, err := store.FilesByDataSource(ctx, ds.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
