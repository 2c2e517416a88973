// Package events defines the application notification types and the
// in-process dispatcher that delivers them. Each event source has its own
// closed set of variants so handlers switch exhaustively instead of parsing
// string event names at runtime.
package events

import (
	"github.com/sleuthgo/galleryd/internal/datamodel"
)

// Origin tags where a notification was raised.
type Origin int

const (
	// OriginLocal means the event was raised by processing on this node.
	OriginLocal Origin = iota
	// OriginRemote means the event was reported by another node working on
	// the same multi-user case.
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// CaseEvent is a case lifecycle notification.
type CaseEvent interface{ isCaseEvent() }

// CurrentCaseOpened fires after a case becomes the current case.
type CurrentCaseOpened struct {
	Case *datamodel.Case
}

// CurrentCaseClosed fires when the current case is closed. Case is the case
// that was open.
type CurrentCaseClosed struct {
	Case *datamodel.Case
}

// DataSourceAdded fires when a new data source is added to the current case.
type DataSourceAdded struct {
	DataSource datamodel.DataSource
	Origin     Origin
}

// ContentTagAdded fires when a user tags a file object.
type ContentTagAdded struct {
	Tag datamodel.Tag
}

// ContentTagDeleted fires when a tag is removed from a file object.
type ContentTagDeleted struct {
	Tag datamodel.Tag
}

func (CurrentCaseOpened) isCaseEvent() {}
func (CurrentCaseClosed) isCaseEvent() {}
func (DataSourceAdded) isCaseEvent()   {}
func (ContentTagAdded) isCaseEvent()   {}
func (ContentTagDeleted) isCaseEvent() {}

// ModuleEvent is an ingest-module notification.
type ModuleEvent interface{ isModuleEvent() }

// FileDone fires once per file after ingest modules finish processing it.
type FileDone struct {
	File   datamodel.File
	Origin Origin
}

// DataAdded fires when a batch of artifacts of one type has been posted.
type DataAdded struct {
	Type      datamodel.ArtifactType
	Artifacts []datamodel.Artifact
	Origin    Origin
}

func (FileDone) isModuleEvent()  {}
func (DataAdded) isModuleEvent() {}

// JobEvent is an ingest-job lifecycle notification, scoped to a data source.
type JobEvent interface{ isJobEvent() }

// AnalysisStarted fires when ingest begins analyzing a data source.
type AnalysisStarted struct {
	DataSourceID int64
	Origin       Origin
}

// AnalysisCompleted fires when ingest finishes analyzing a data source.
type AnalysisCompleted struct {
	DataSourceID int64
	Origin       Origin
}

func (AnalysisStarted) isJobEvent()   {}
func (AnalysisCompleted) isJobEvent() {}
