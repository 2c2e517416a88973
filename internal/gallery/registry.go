package gallery

import (
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"

	"github.com/sleuthgo/galleryd/internal/casedb"
	"github.com/sleuthgo/galleryd/internal/controller"
	"github.com/sleuthgo/galleryd/internal/datamodel"
)

// Registry owns the single live per-case controller. Construction,
// replacement and teardown are serialized under one mutex: no caller ever
// observes a half-constructed or stale controller.
type Registry struct {
	cases  *casedb.Manager
	policy *EnablementPolicy
	logger *log.Logger

	mu      sync.Mutex
	current *controller.Controller
}

// NewRegistry creates an empty registry bound to the case manager.
func NewRegistry(cases *casedb.Manager, policy *EnablementPolicy, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Registry{cases: cases, policy: policy, logger: logger}
}

// GetOrCreate returns the live controller, constructing one bound to the
// current case if none exists. Returns ErrNoCaseOpen when no case is
// current, or a ControllerInitError when construction fails.
func (r *Registry) GetOrCreate() (*controller.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		return r.current, nil
	}

	currentCase, err := r.cases.CurrentCase()
	if err != nil {
		if errors.Is(err, casedb.ErrNoCaseOpen) {
			return nil, ErrNoCaseOpen
		}
		return nil, err
	}

	ctrl, err := r.buildLocked(currentCase)
	if err != nil {
		return nil, err
	}
	r.current = ctrl
	return ctrl, nil
}

// Replace shuts down any existing controller and constructs a fresh one for
// newCase. On construction failure the registry is left empty and the error
// is returned; a later GetOrCreate may retry.
func (r *Registry) Replace(newCase *datamodel.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.current.Shutdown()
		r.current = nil
	}

	ctrl, err := r.buildLocked(newCase)
	if err != nil {
		return err
	}
	r.current = ctrl
	return nil
}

// Clear shuts down the current controller, if any, and leaves the registry
// empty. Used on case close.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.current.Shutdown()
		r.current = nil
	}
}

func (r *Registry) buildLocked(theCase *datamodel.Case) (*controller.Controller, error) {
	store, err := r.cases.CurrentStore()
	if err != nil {
		if errors.Is(err, casedb.ErrNoCaseOpen) {
			return nil, ErrNoCaseOpen
		}
		return nil, err
	}

	dbPath := filepath.Join(ModuleOutputDir(theCase), drawablesDBName)
	listening := r.policy.IsEnabledForCase(theCase)

	ctrl, err := controller.New(theCase, store, dbPath, listening, r.logger)
	if err != nil {
		return nil, &ControllerInitError{Err: err}
	}
	return ctrl, nil
}
