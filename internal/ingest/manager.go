// Package ingest drives evidence processing: ingest job lifecycle, file
// cataloging with type detection and hash lookups, and artifact posting.
// Notifications go out through the application dispatcher.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/sleuthgo/galleryd/internal/datamodel"
	"github.com/sleuthgo/galleryd/internal/events"
)

// Manager tracks running ingest jobs and posts ingest notifications.
type Manager struct {
	dispatcher *events.Dispatcher
	logger     *log.Logger

	mu          sync.Mutex
	running     map[int64]bool
	knownHashes map[string]datamodel.KnownStatus
}

// NewManager creates an ingest manager.
func NewManager(dispatcher *events.Dispatcher, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Manager{
		dispatcher:  dispatcher,
		logger:      logger,
		running:     make(map[int64]bool),
		knownHashes: make(map[string]datamodel.KnownStatus),
	}
}

// LoadKnownHashes reads a reference hash set file: one record per line,
// "sha256,known" or "sha256,known_bad". Blank lines and # comments are
// skipped. Later files accumulate into the same set.
func (m *Manager) LoadKnownHashes(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open hash set file %s: %w", path, err)
	}
	defer f.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	scanner := bufio.NewScanner(f)
	loaded := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		hash := strings.ToLower(strings.TrimSpace(parts[0]))
		if hash == "" {
			continue
		}
		status := datamodel.Known
		if len(parts) == 2 {
			status = datamodel.ParseKnownStatus(strings.TrimSpace(parts[1]))
			if status == datamodel.KnownUnknown {
				status = datamodel.Known
			}
		}
		m.knownHashes[hash] = status
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read hash set file %s: %w", path, err)
	}

	m.logger.Printf("Loaded %d reference hashes from %s", loaded, path)
	return nil
}

// LookupKnownStatus returns the hash-set status for a content hash.
func (m *Manager) LookupKnownStatus(sha256 string) datamodel.KnownStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.knownHashes[strings.ToLower(sha256)]
}

// StartJob marks a data source as under analysis and publishes
// AnalysisStarted with local origin.
func (m *Manager) StartJob(dataSourceID int64) {
	m.mu.Lock()
	m.running[dataSourceID] = true
	m.mu.Unlock()

	m.logger.Printf("Ingest started for data source %d", dataSourceID)
	m.dispatcher.PublishJob(events.AnalysisStarted{DataSourceID: dataSourceID, Origin: events.OriginLocal})
}

// CompleteJob marks a data source's analysis finished and publishes
// AnalysisCompleted with local origin.
func (m *Manager) CompleteJob(dataSourceID int64) {
	m.mu.Lock()
	delete(m.running, dataSourceID)
	m.mu.Unlock()

	m.logger.Printf("Ingest completed for data source %d", dataSourceID)
	m.dispatcher.PublishJob(events.AnalysisCompleted{DataSourceID: dataSourceID, Origin: events.OriginLocal})
}

// IsIngestRunning reports whether any ingest job is in progress.
func (m *Manager) IsIngestRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running) > 0
}

// PostFileDone publishes a file-done notification with local origin.
func (m *Manager) PostFileDone(f datamodel.File) {
	m.dispatcher.PublishModule(events.FileDone{File: f, Origin: events.OriginLocal})
}

// PostArtifacts publishes a batch of artifacts of one type with local origin.
func (m *Manager) PostArtifacts(artifactType datamodel.ArtifactType, artifacts []datamodel.Artifact) {
	if len(artifacts) == 0 {
		return
	}
	m.dispatcher.PublishModule(events.DataAdded{Type: artifactType, Artifacts: artifacts, Origin: events.OriginLocal})
}
