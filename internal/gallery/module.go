// Package gallery is the image gallery module core: the per-case controller
// registry, the enablement policy, the drawable classifier, and the event
// router that reacts to case and ingest notifications.
package gallery

import (
	"io"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/sleuthgo/galleryd/internal/casedb"
	"github.com/sleuthgo/galleryd/internal/controller"
	"github.com/sleuthgo/galleryd/internal/datamodel"
	"github.com/sleuthgo/galleryd/internal/events"
)

// ModuleName names the module; it is also the per-case settings namespace
// and the module output folder name.
const ModuleName = "Image Gallery"

const drawablesDBName = "drawables.db"

// ModuleOutputDir is the module's output folder for a case:
// <case module dir>/<module name>.
func ModuleOutputDir(theCase *datamodel.Case) string {
	return filepath.Join(theCase.ModuleDirectory(), ModuleName)
}

// TagEvent is a tag change on an object already tracked in the drawables
// database, fanned out to tag subscribers.
type TagEvent struct {
	Tag     datamodel.Tag
	Deleted bool
}

// RebuildPrompt asks the UI layer to offer a drawables rebuild after a
// remote node completed analysis. The handler only decides that a prompt is
// warranted; it never blocks on the UI. Declining or cancelling the prompt
// is a no-op.
type RebuildPrompt struct {
	CaseName     string
	DataSourceID int64
}

// Module wires the gallery components together and is the process-wide
// entry point exposed to the CLI and UI layers.
type Module struct {
	registry   *Registry
	policy     *EnablementPolicy
	classifier *Classifier
	dispatcher *events.Dispatcher
	logger     *log.Logger

	prompts  chan RebuildPrompt
	viewOpen atomic.Bool

	mu        sync.Mutex
	closeView func()
	tagSubs   []func(TagEvent)
}

// NewModule creates the module. Listeners are not registered until Start.
func NewModule(cases *casedb.Manager, dispatcher *events.Dispatcher, logger *log.Logger) *Module {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	policy := NewEnablementPolicy()
	return &Module{
		registry:   NewRegistry(cases, policy, logger),
		policy:     policy,
		classifier: NewClassifier(),
		dispatcher: dispatcher,
		logger:     logger,
		prompts:    make(chan RebuildPrompt, 4),
	}
}

// Start registers the case, ingest-module and ingest-job listeners. Called
// exactly once at application start. Headless sessions register nothing:
// the decision is made here, once, instead of each handler checking and
// unsubscribing itself on its first event.
func (m *Module) Start(withGUI bool) {
	if !withGUI {
		m.logger.Printf("Running headless, gallery event listeners not registered")
		return
	}
	m.dispatcher.SubscribeModule(m.handleModuleEvent)
	m.dispatcher.SubscribeCase(m.handleCaseEvent)
	m.dispatcher.SubscribeJob(m.handleJobEvent)
	m.logger.Printf("Gallery event listeners registered")
}

// GetController returns the controller for the current case, constructing
// it on first access. Fails with ErrNoCaseOpen or a ControllerInitError.
func (m *Module) GetController() (*controller.Controller, error) {
	return m.registry.GetOrCreate()
}

// IsEnabledForCase reports whether the gallery module is enabled for theCase.
func (m *Module) IsEnabledForCase(theCase *datamodel.Case) bool {
	return m.policy.IsEnabledForCase(theCase)
}

// Policy returns the enablement policy, e.g. for the options UI.
func (m *Module) Policy() *EnablementPolicy {
	return m.policy
}

// Prompts is the channel the UI layer consumes rebuild prompts from.
func (m *Module) Prompts() <-chan RebuildPrompt {
	return m.prompts
}

// SetViewOpen records whether the gallery view is currently displayed. The
// router only prompts for a rebuild while the view is open.
func (m *Module) SetViewOpen(open bool) {
	m.viewOpen.Store(open)
}

// SetViewCloser installs the hook invoked to close the gallery view when
// the current case closes.
func (m *Module) SetViewCloser(closeView func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeView = closeView
}

// SubscribeTags registers a subscriber for tag events on tracked objects.
func (m *Module) SubscribeTags(sub func(TagEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagSubs = append(m.tagSubs, sub)
}

func (m *Module) fireTagEvent(ev TagEvent) {
	m.mu.Lock()
	subs := make([]func(TagEvent), len(m.tagSubs))
	copy(subs, m.tagSubs)
	m.mu.Unlock()

	for _, sub := range subs {
		sub(ev)
	}
}

func (m *Module) closeViewIfOpen() {
	m.mu.Lock()
	closeView := m.closeView
	m.mu.Unlock()

	if closeView != nil {
		closeView()
	}
	m.viewOpen.Store(false)
}
