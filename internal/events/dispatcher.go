package events

import (
	"sync"
)

// CaseHandler receives case lifecycle events.
type CaseHandler func(CaseEvent)

// ModuleHandler receives ingest-module events.
type ModuleHandler func(ModuleEvent)

// JobHandler receives ingest-job events.
type JobHandler func(JobEvent)

// Dispatcher fans application events out to registered handlers. Publishing
// is synchronous: handlers for one event class run in registration order on
// the publishing goroutine, so a single publisher sees FIFO delivery per
// class. Handlers must not block on I/O beyond enqueueing work.
type Dispatcher struct {
	mu             sync.RWMutex
	caseHandlers   []CaseHandler
	moduleHandlers []ModuleHandler
	jobHandlers    []JobHandler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// SubscribeCase registers a handler for case lifecycle events.
func (d *Dispatcher) SubscribeCase(h CaseHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.caseHandlers = append(d.caseHandlers, h)
}

// SubscribeModule registers a handler for ingest-module events.
func (d *Dispatcher) SubscribeModule(h ModuleHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.moduleHandlers = append(d.moduleHandlers, h)
}

// SubscribeJob registers a handler for ingest-job events.
func (d *Dispatcher) SubscribeJob(h JobHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobHandlers = append(d.jobHandlers, h)
}

// PublishCase delivers a case event to all case handlers.
func (d *Dispatcher) PublishCase(ev CaseEvent) {
	d.mu.RLock()
	handlers := make([]CaseHandler, len(d.caseHandlers))
	copy(handlers, d.caseHandlers)
	d.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// PublishModule delivers an ingest-module event to all module handlers.
func (d *Dispatcher) PublishModule(ev ModuleEvent) {
	d.mu.RLock()
	handlers := make([]ModuleHandler, len(d.moduleHandlers))
	copy(handlers, d.moduleHandlers)
	d.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// PublishJob delivers an ingest-job event to all job handlers.
func (d *Dispatcher) PublishJob(ev JobEvent) {
	d.mu.RLock()
	handlers := make([]JobHandler, len(d.jobHandlers))
	copy(handlers, d.jobHandlers)
	d.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
