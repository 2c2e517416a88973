// Package controller holds the per-case gallery controller: the drawables
// database handle, the background task queue that heavier event work is
// handed off to, and the listening/stale state the event router consults.
package controller

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/sleuthgo/galleryd/internal/casedb"
	"github.com/sleuthgo/galleryd/internal/datamodel"
	"github.com/sleuthgo/galleryd/internal/drawabledb"
	"github.com/sleuthgo/galleryd/internal/filetype"
)

const taskQueueDepth = 256

// Task is a unit of drawables work executed on the controller's worker
// goroutine.
type Task interface {
	Run(ctx context.Context, db *drawabledb.DB) error
}

// Controller is the per-case gallery controller. One instance exists per
// open case; the registry serializes construction and shutdown.
type Controller struct {
	theCase   *datamodel.Case
	caseStore *casedb.Store
	db        *drawabledb.DB
	logger    *log.Logger

	tasks chan Task
	wg    sync.WaitGroup

	mu       sync.Mutex
	shutdown bool

	listening atomic.Bool
	stale     atomic.Bool
}

// New constructs a controller for theCase, opening the drawables database at
// dbPath. listening is the initial listening-enabled state, resolved from
// the enablement policy by the caller.
func New(theCase *datamodel.Case, caseStore *casedb.Store, dbPath string, listening bool, logger *log.Logger) (*Controller, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	db, err := drawabledb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open drawables database for case %s: %w", theCase.Name, err)
	}

	c := &Controller{
		theCase:   theCase,
		caseStore: caseStore,
		db:        db,
		logger:    logger,
		tasks:     make(chan Task, taskQueueDepth),
	}
	c.listening.Store(listening)

	c.wg.Add(1)
	go c.worker()

	return c, nil
}

func (c *Controller) worker() {
	defer c.wg.Done()
	ctx := context.Background()
	for task := range c.tasks {
		if err := task.Run(ctx, c.db); err != nil {
			c.logger.Printf("Drawables task failed: %v", err)
		}
	}
}

// Case returns the case this controller is bound to.
func (c *Controller) Case() *datamodel.Case {
	return c.theCase
}

// Database returns the drawables database handle.
func (c *Controller) Database() *drawabledb.DB {
	return c.db
}

// QueueTask enqueues drawables work without blocking. Work is dropped with
// an error if the controller is shut down or the queue is full.
func (c *Controller) QueueTask(task Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return fmt.Errorf("controller for case %s is shut down", c.theCase.Name)
	}
	select {
	case c.tasks <- task:
		return nil
	default:
		return fmt.Errorf("task queue for case %s is full", c.theCase.Name)
	}
}

// IsListeningEnabled reports whether the controller reacts to ingest events.
func (c *Controller) IsListeningEnabled() bool {
	return c.listening.Load()
}

// SetListeningEnabled toggles reaction to ingest events.
func (c *Controller) SetListeningEnabled(enabled bool) {
	c.listening.Store(enabled)
}

// IsStale reports whether local drawables may lag the case database, e.g.
// after a remote node completed analysis this node has not reflected.
func (c *Controller) IsStale() bool {
	return c.stale.Load()
}

// SetStale marks or clears the stale flag.
func (c *Controller) SetStale(stale bool) {
	c.stale.Store(stale)
}

// HasFilesWithUndeterminedType reports whether the data source still has
// files with no detected type in the case database.
func (c *Controller) HasFilesWithUndeterminedType(ctx context.Context, dataSourceID int64) (bool, error) {
	return c.caseStore.HasFilesWithNoMimeType(ctx, dataSourceID)
}

// RebuildDatabase re-catalogs every drawable file in the case from scratch:
// existing drawable records are cleared, each data source's files are
// re-classified from the case catalog, statuses are recomputed, and the
// stale flag is cleared.
func (c *Controller) RebuildDatabase(ctx context.Context) error {
	c.logger.Printf("Rebuilding drawables database for case %s", c.theCase.Name)

	if err := c.db.ClearFiles(ctx); err != nil {
		return err
	}

	sources, err := c.caseStore.ListDataSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list data sources for rebuild: %w", err)
	}

	for _, ds := range sources {
		files, err := c.caseStore.FilesByDataSource(ctx, ds.ID)
		if err != nil {
			return fmt.Errorf("failed to list files for data source %d: %w", ds.ID, err)
		}
		for _, f := range files {
			if !rebuildEligible(f) {
				continue
			}
			if err := c.db.InsertOrUpdateFile(ctx, f); err != nil {
				return err
			}
		}

		undetermined, err := c.caseStore.HasFilesWithNoMimeType(ctx, ds.ID)
		if err != nil {
			return err
		}
		status := drawabledb.StatusComplete
		if undetermined {
			status = drawabledb.StatusDefault
		}
		if err := c.db.InsertOrUpdateDataSource(ctx, ds.ID, status); err != nil {
			return err
		}
	}

	c.SetStale(false)
	c.logger.Printf("Drawables database rebuild for case %s finished", c.theCase.Name)
	return nil
}

func rebuildEligible(f datamodel.File) bool {
	if f.IsDir || f.Known != datamodel.KnownUnknown {
		return false
	}
	if f.MIMEType != "" {
		return filetype.IsDrawableMIMEType(f.MIMEType)
	}
	return filetype.HasDrawableExtension(f.Name)
}

// Shutdown stops the worker, drains no further tasks, and closes the
// drawables database. Safe to call once; the registry guarantees that.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.shutdown = true
	close(c.tasks)
	c.mu.Unlock()

	c.wg.Wait()
	if err := c.db.Close(); err != nil {
		c.logger.Printf("Failed to close drawables database for case %s: %v", c.theCase.Name, err)
	}
	c.logger.Printf("Controller for case %s shut down", c.theCase.Name)
}
