package gallery

import (
	"fmt"

	"github.com/sleuthgo/galleryd/internal/casedb"
)

// ErrNoCaseOpen is returned by controller lookup when no case is current.
// It aliases the case service sentinel so callers can match either.
var ErrNoCaseOpen = casedb.ErrNoCaseOpen

// ControllerInitError wraps a failure to construct the per-case controller,
// typically because the drawables database could not be opened. The registry
// stays unset so a later lookup can retry.
type ControllerInitError struct {
	Err error
}

func (e *ControllerInitError) Error() string {
	return fmt.Sprintf("failed to initialize gallery controller: %v", e.Err)
}

func (e *ControllerInitError) Unwrap() error {
	return e.Err
}

// ClassificationError wraps a failure to determine a file's media type. The
// file is skipped, never retried within the same event.
type ClassificationError struct {
	ObjID int64
	Err   error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("failed to classify file (obj_id=%d): %v", e.ObjID, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}
