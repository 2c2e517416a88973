package casedb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sleuthgo/galleryd/internal/datamodel"
	"github.com/sleuthgo/galleryd/internal/events"
)

// ErrNoCaseOpen is returned when an operation needs a current case and none
// is open.
var ErrNoCaseOpen = errors.New("no case is open")

const (
	caseDBName      = "case.db"
	currentCaseFile = ".current"
)

// Manager owns the process-wide current case. It creates case directories,
// opens case stores, and publishes case lifecycle events through the
// dispatcher. At most one case is current at any time.
type Manager struct {
	casesDir   string
	dispatcher *events.Dispatcher
	logger     *log.Logger

	mu      sync.Mutex
	current *datamodel.Case
	store   *Store
}

// NewManager creates a case manager rooted at casesDir.
func NewManager(casesDir string, dispatcher *events.Dispatcher, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Manager{
		casesDir:   casesDir,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Open opens the named case, creating it if it does not exist, makes it the
// current case and publishes CurrentCaseOpened. Any previously open case is
// closed first.
func (m *Manager) Open(ctx context.Context, name string) (*datamodel.Case, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("case name must not be blank")
	}

	m.mu.Lock()
	if m.current != nil {
		m.closeLocked()
	}

	caseDir := filepath.Join(m.casesDir, name)
	dbPath := filepath.Join(caseDir, caseDBName)
	existed := fileExists(dbPath)

	store, err := OpenStore(dbPath)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to open case %s: %w", name, err)
	}

	var c *datamodel.Case
	if existed {
		c, err = store.CaseInfo(ctx)
		if err != nil {
			store.Close()
			m.mu.Unlock()
			return nil, fmt.Errorf("failed to load case %s: %w", name, err)
		}
	} else {
		c = &datamodel.Case{
			ID:        uuid.NewString(),
			Name:      name,
			Directory: caseDir,
			CreatedAt: time.Now(),
		}
		for _, dir := range []string{c.ConfigDirectory(), c.ModuleDirectory()} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				store.Close()
				m.mu.Unlock()
				return nil, fmt.Errorf("failed to create case directory %s: %w", dir, err)
			}
		}
		if err := store.SaveCaseInfo(ctx, c); err != nil {
			store.Close()
			m.mu.Unlock()
			return nil, err
		}
	}

	m.current = c
	m.store = store
	if err := m.writeCurrentPointer(name); err != nil {
		m.logger.Printf("Failed to persist current case pointer: %v", err)
	}
	m.mu.Unlock()

	m.logger.Printf("Case %s (%s) is now current", c.Name, c.ID)
	m.dispatcher.PublishCase(events.CurrentCaseOpened{Case: c})
	return c, nil
}

// OpenCurrent reopens the case recorded as current by a previous Open, if any.
func (m *Manager) OpenCurrent(ctx context.Context) (*datamodel.Case, error) {
	data, err := os.ReadFile(filepath.Join(m.casesDir, currentCaseFile))
	if err != nil {
		return nil, ErrNoCaseOpen
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return nil, ErrNoCaseOpen
	}
	return m.Open(ctx, name)
}

// Close closes the current case and publishes CurrentCaseClosed. Closing
// when no case is open is a no-op.
func (m *Manager) Close() {
	m.mu.Lock()
	closed := m.closeLocked()
	m.mu.Unlock()

	if closed != nil {
		m.dispatcher.PublishCase(events.CurrentCaseClosed{Case: closed})
	}
}

func (m *Manager) closeLocked() *datamodel.Case {
	if m.current == nil {
		return nil
	}
	closed := m.current
	if err := m.store.Close(); err != nil {
		m.logger.Printf("Failed to close case store for %s: %v", closed.Name, err)
	}
	m.current = nil
	m.store = nil
	if err := os.Remove(filepath.Join(m.casesDir, currentCaseFile)); err != nil && !os.IsNotExist(err) {
		m.logger.Printf("Failed to clear current case pointer: %v", err)
	}
	m.logger.Printf("Case %s closed", closed.Name)
	return closed
}

// CurrentCase returns the current case, or ErrNoCaseOpen.
func (m *Manager) CurrentCase() (*datamodel.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrNoCaseOpen
	}
	return m.current, nil
}

// CurrentStore returns the store for the current case, or ErrNoCaseOpen.
func (m *Manager) CurrentStore() (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil, ErrNoCaseOpen
	}
	return m.store, nil
}

// AddDataSource registers a data source with the current case and publishes
// DataSourceAdded with local origin.
func (m *Manager) AddDataSource(ctx context.Context, name, path string) (datamodel.DataSource, error) {
	m.mu.Lock()
	c, store := m.current, m.store
	m.mu.Unlock()
	if c == nil {
		return datamodel.DataSource{}, ErrNoCaseOpen
	}

	ds, err := store.AddDataSource(ctx, c.ID, name, path)
	if err != nil {
		return datamodel.DataSource{}, err
	}
	m.dispatcher.PublishCase(events.DataSourceAdded{DataSource: ds, Origin: events.OriginLocal})
	return ds, nil
}

// AddContentTag tags a file object in the current case and publishes
// ContentTagAdded.
func (m *Manager) AddContentTag(ctx context.Context, tag datamodel.Tag) error {
	store, err := m.CurrentStore()
	if err != nil {
		return err
	}
	if err := store.AddTag(ctx, tag); err != nil {
		return err
	}
	m.dispatcher.PublishCase(events.ContentTagAdded{Tag: tag})
	return nil
}

// DeleteContentTag removes a tag from a file object in the current case and
// publishes ContentTagDeleted.
func (m *Manager) DeleteContentTag(ctx context.Context, tag datamodel.Tag) error {
	store, err := m.CurrentStore()
	if err != nil {
		return err
	}
	if err := store.DeleteTag(ctx, tag); err != nil {
		return err
	}
	m.dispatcher.PublishCase(events.ContentTagDeleted{Tag: tag})
	return nil
}

func (m *Manager) writeCurrentPointer(name string) error {
	if err := os.MkdirAll(m.casesDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.casesDir, currentCaseFile), []byte(name+"\n"), 0644)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
