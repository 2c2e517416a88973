package gallery

import (
	"sync"

	"github.com/sleuthgo/galleryd/internal/datamodel"
	"github.com/sleuthgo/galleryd/internal/filetype"
)

// Classifier decides whether a file is of interest to the gallery: a
// supported image/video type and not already known by a hash set. The type
// detector is created lazily; an initialization failure is reported as a
// ClassificationError and the file is skipped, never a crash.
type Classifier struct {
	once        sync.Once
	detector    *filetype.Detector
	initErr     error
	newDetector func() (*filetype.Detector, error)
}

// NewClassifier creates a classifier using the default detector.
func NewClassifier() *Classifier {
	return &Classifier{newDetector: filetype.NewDetector}
}

// NewClassifierWithDetector creates a classifier with a custom detector
// factory. Used by tests to simulate detector initialization failure.
func NewClassifierWithDetector(factory func() (*filetype.Detector, error)) *Classifier {
	return &Classifier{newDetector: factory}
}

// IsDrawableAndNotKnown reports whether f is a supported image/video type
// and its content hash matched no reference set.
func (c *Classifier) IsDrawableAndNotKnown(f datamodel.File) (bool, error) {
	if f.Known != datamodel.KnownUnknown {
		return false, nil
	}

	mime := f.MIMEType
	if mime == "" {
		det, err := c.detectorInstance()
		if err != nil {
			return false, &ClassificationError{ObjID: f.ObjID, Err: err}
		}
		mime, err = det.Detect(f.Path)
		if err != nil {
			return false, &ClassificationError{ObjID: f.ObjID, Err: err}
		}
	}

	return filetype.IsDrawableMIMEType(mime), nil
}

func (c *Classifier) detectorInstance() (*filetype.Detector, error) {
	c.once.Do(func() {
		c.detector, c.initErr = c.newDetector()
	})
	return c.detector, c.initErr
}
