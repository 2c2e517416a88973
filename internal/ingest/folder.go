package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sleuthgo/galleryd/internal/casedb"
	"github.com/sleuthgo/galleryd/internal/datamodel"
	"github.com/sleuthgo/galleryd/internal/filetype"
)

// MIME types whose files may carry EXIF metadata worth posting as artifacts.
var exifBearingTypes = map[string]bool{
	"image/jpeg": true,
	"image/tiff": true,
	"image/heic": true,
}

// FolderOptions configures a data source folder ingestor.
type FolderOptions struct {
	// Watch keeps the ingestor running after the initial scan, cataloging
	// files as they appear.
	Watch  bool
	Logger *log.Logger
}

// FolderIngestor catalogs the files of one data source directory into the
// case database and raises ingest notifications: job start/complete around
// the initial scan, one file-done per cataloged file, and artifact batches
// for EXIF candidates and hash-set hits.
type FolderIngestor struct {
	manager *Manager
	store   *casedb.Store
	ds      datamodel.DataSource
	opts    FolderOptions

	detector *filetype.Detector

	mu   sync.Mutex
	seen map[string]bool

	cataloged int
	errors    int
}

// NewFolderIngestor constructs a folder ingestor for one data source.
func NewFolderIngestor(manager *Manager, store *casedb.Store, ds datamodel.DataSource, opts FolderOptions) (*FolderIngestor, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[ingest-folder] ", log.LstdFlags)
	}
	detector, err := filetype.NewDetector()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize type detector: %w", err)
	}
	return &FolderIngestor{
		manager:  manager,
		store:    store,
		ds:       ds,
		opts:     opts,
		detector: detector,
		seen:     make(map[string]bool),
	}, nil
}

// Run performs the initial scan bracketed by job start/complete, then stays
// in watch mode if configured.
func (fi *FolderIngestor) Run(ctx context.Context) error {
	fi.manager.StartJob(fi.ds.ID)

	err := fi.scanOnce(ctx)
	fi.manager.CompleteJob(fi.ds.ID)
	if err != nil {
		return err
	}

	if !fi.opts.Watch {
		fi.opts.Logger.Printf("Completed one-shot catalog of %s: files=%d errors=%d", fi.ds.Path, fi.cataloged, fi.errors)
		return nil
	}
	return fi.watchLoop(ctx)
}

func (fi *FolderIngestor) scanOnce(ctx context.Context) error {
	return filepath.WalkDir(fi.ds.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			fi.opts.Logger.Printf("Skipping %s: %v", path, err)
			fi.errors++
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if err := fi.catalogFile(ctx, path); err != nil {
			fi.opts.Logger.Printf("Error cataloging %s: %v", path, err)
			fi.errors++
		}
		return nil
	})
}

func (fi *FolderIngestor) watchLoop(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer w.Close()

	if err := w.Add(fi.ds.Path); err != nil {
		return fmt.Errorf("watch add: %w", err)
	}

	fi.opts.Logger.Printf("Watching data source directory: %s", fi.ds.Path)

	for {
		select {
		case <-ctx.Done():
			fi.opts.Logger.Printf("Watch stopping: files=%d errors=%d", fi.cataloged, fi.errors)
			return ctx.Err()
		case ev := <-w.Events:
			if (ev.Op&fsnotify.Create) == 0 && (ev.Op&fsnotify.Write) == 0 {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil || info.IsDir() {
				continue
			}
			// Writes arrive in bursts while a file is still being copied
			// in; a short settle delay keeps partial reads rare.
			time.Sleep(100 * time.Millisecond)
			if err := fi.catalogFile(ctx, ev.Name); err != nil {
				fi.opts.Logger.Printf("Error cataloging %s: %v", ev.Name, err)
				fi.errors++
			}
		case err := <-w.Errors:
			if err != nil {
				fi.opts.Logger.Printf("Watch error: %v", err)
			}
		}
	}
}

// catalogFile adds one file to the case catalog and raises the matching
// notifications. Files already cataloged in this run are skipped.
func (fi *FolderIngestor) catalogFile(ctx context.Context, path string) error {
	fi.mu.Lock()
	if fi.seen[path] {
		fi.mu.Unlock()
		return nil
	}
	fi.seen[path] = true
	fi.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	mime, err := fi.detector.Detect(path)
	if err != nil {
		fi.opts.Logger.Printf("Type detection failed for %s: %v", path, err)
		mime = ""
	}

	sha, err := hashFile(path)
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}

	rel, err := filepath.Rel(fi.ds.Path, path)
	if err != nil {
		rel = path
	}

	file := datamodel.File{
		DataSourceID: fi.ds.ID,
		Name:         filepath.Base(path),
		Path:         filepath.ToSlash(rel),
		MIMEType:     mime,
		Size:         info.Size(),
		Known:        fi.manager.LookupKnownStatus(sha),
		SHA256:       sha,
	}

	file, err = fi.store.AddFile(ctx, file)
	if err != nil {
		return err
	}
	fi.cataloged++

	fi.manager.PostFileDone(file)

	if file.Known != datamodel.KnownUnknown {
		fi.manager.PostArtifacts(datamodel.ArtifactHashSetHit, []datamodel.Artifact{
			{Type: datamodel.ArtifactHashSetHit, ObjID: file.ObjID},
		})
	}
	if exifBearingTypes[strings.ToLower(mime)] {
		fi.manager.PostArtifacts(datamodel.ArtifactEXIFMetadata, []datamodel.Artifact{
			{Type: datamodel.ArtifactEXIFMetadata, ObjID: file.ObjID},
		})
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
