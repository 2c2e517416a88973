package gallery

import (
	"context"

	"github.com/sleuthgo/galleryd/internal/controller"
	"github.com/sleuthgo/galleryd/internal/datamodel"
	"github.com/sleuthgo/galleryd/internal/drawabledb"
	"github.com/sleuthgo/galleryd/internal/events"
)

// Event handlers run on the publishing goroutine. They must never panic out
// into the dispatcher and never block on I/O beyond enqueueing work; every
// failure is logged with enough context to diagnose and then swallowed.

func (m *Module) handleModuleEvent(ev events.ModuleEvent) {
	switch ev := ev.(type) {
	case events.FileDone:
		// Files are processed in real time only on the node running the
		// ingest job; a remote node's files are handled as a group when
		// its job completes.
		if ev.Origin != events.OriginLocal {
			return
		}
		m.handleFileDone(ev.File)

	case events.DataAdded:
		if ev.Origin != events.OriginLocal {
			return
		}
		m.handleDataAdded(ev.Type, ev.Artifacts)
	}
}

func (m *Module) handleFileDone(file datamodel.File) {
	if file.IsDir {
		return
	}

	ctrl, err := m.GetController()
	if err != nil {
		m.logger.Printf("SEVERE: Failed to handle file-done event (obj_id=%d): %v", file.ObjID, err)
		return
	}
	if !ctrl.IsListeningEnabled() {
		return
	}

	drawable, err := m.classifier.IsDrawableAndNotKnown(file)
	if err != nil {
		m.logger.Printf("SEVERE: Failed to determine if file is of interest to the gallery, ignoring file (obj_id=%d): %v", file.ObjID, err)
		return
	}
	if !drawable {
		return
	}

	if err := ctrl.QueueTask(controller.UpdateFileTask{File: file}); err != nil {
		m.logger.Printf("SEVERE: Failed to queue drawables update (obj_id=%d): %v", file.ObjID, err)
	}
}

// handleDataAdded records EXIF and hash-set artifacts in the drawables
// caches. The caches must stay correct even while the module is disabled
// for the case, so there is no listening-enabled check here.
func (m *Module) handleDataAdded(artifactType datamodel.ArtifactType, artifacts []datamodel.Artifact) {
	if artifactType != datamodel.ArtifactEXIFMetadata && artifactType != datamodel.ArtifactHashSetHit {
		return
	}

	ctrl, err := m.GetController()
	if err != nil {
		m.logger.Printf("SEVERE: Failed to handle data-added event (%s): %v", artifactType, err)
		return
	}

	ctx := context.Background()
	db := ctrl.Database()
	for _, art := range artifacts {
		var cacheErr error
		switch artifactType {
		case datamodel.ArtifactEXIFMetadata:
			cacheErr = db.AddExifCache(ctx, art.ObjID)
		case datamodel.ArtifactHashSetHit:
			cacheErr = db.AddHashSetCache(ctx, art.ObjID)
		}
		if cacheErr != nil {
			m.logger.Printf("SEVERE: Failed to cache %s artifact (obj_id=%d): %v", artifactType, art.ObjID, cacheErr)
		}
	}
}

func (m *Module) handleCaseEvent(ev events.CaseEvent) {
	switch ev := ev.(type) {
	case events.CurrentCaseOpened:
		if err := m.registry.Replace(ev.Case); err != nil {
			m.logger.Printf("SEVERE: Failed to construct controller for new case %s: %v", ev.Case.Name, err)
		}

	case events.CurrentCaseClosed:
		m.closeViewIfOpen()
		m.registry.Clear()

	case events.DataSourceAdded:
		if ev.Origin != events.OriginLocal {
			return
		}
		ctrl, err := m.GetController()
		if err != nil {
			m.logger.Printf("SEVERE: Failed to handle data-source-added event (ds=%d): %v", ev.DataSource.ID, err)
			return
		}
		if !ctrl.IsListeningEnabled() {
			return
		}
		if err := ctrl.Database().InsertOrUpdateDataSource(context.Background(), ev.DataSource.ID, drawabledb.StatusDefault); err != nil {
			m.logger.Printf("SEVERE: Failed to register data source %d: %v", ev.DataSource.ID, err)
		}

	case events.ContentTagAdded:
		ctrl, err := m.GetController()
		if err != nil {
			m.logger.Printf("SEVERE: Failed to handle tag-added event (obj_id=%d): %v", ev.Tag.ObjID, err)
			return
		}
		ctx := context.Background()
		db := ctrl.Database()
		if err := db.AddTagCache(ctx, ev.Tag.ObjID); err != nil {
			m.logger.Printf("SEVERE: Failed to cache tag (obj_id=%d): %v", ev.Tag.ObjID, err)
		}
		tracked, err := db.IsInDB(ctx, ev.Tag.ObjID)
		if err != nil {
			m.logger.Printf("SEVERE: Failed to check drawables membership (obj_id=%d): %v", ev.Tag.ObjID, err)
			return
		}
		if tracked {
			m.fireTagEvent(TagEvent{Tag: ev.Tag})
		}

	case events.ContentTagDeleted:
		ctrl, err := m.GetController()
		if err != nil {
			m.logger.Printf("SEVERE: Failed to handle tag-deleted event (obj_id=%d): %v", ev.Tag.ObjID, err)
			return
		}
		tracked, err := ctrl.Database().IsInDB(context.Background(), ev.Tag.ObjID)
		if err != nil {
			m.logger.Printf("SEVERE: Failed to check drawables membership (obj_id=%d): %v", ev.Tag.ObjID, err)
			return
		}
		if tracked {
			m.fireTagEvent(TagEvent{Tag: ev.Tag, Deleted: true})
		}
	}
}

func (m *Module) handleJobEvent(ev events.JobEvent) {
	switch ev := ev.(type) {
	case events.AnalysisStarted:
		if ev.Origin != events.OriginLocal {
			return
		}
		ctrl, err := m.GetController()
		if err != nil {
			m.logger.Printf("SEVERE: Failed to handle analysis-started event (ds=%d): %v", ev.DataSourceID, err)
			return
		}
		if !ctrl.IsListeningEnabled() {
			return
		}
		if err := ctrl.Database().InsertOrUpdateDataSource(context.Background(), ev.DataSourceID, drawabledb.StatusInProgress); err != nil {
			m.logger.Printf("SEVERE: Failed to mark data source %d in progress: %v", ev.DataSourceID, err)
		}

	case events.AnalysisCompleted:
		if ev.Origin == events.OriginLocal {
			m.handleLocalAnalysisCompleted(ev.DataSourceID)
		} else {
			m.handleRemoteAnalysisCompleted(ev.DataSourceID)
		}
	}
}

func (m *Module) handleLocalAnalysisCompleted(dataSourceID int64) {
	ctrl, err := m.GetController()
	if err != nil {
		m.logger.Printf("SEVERE: Failed to handle analysis-completed event (ds=%d): %v", dataSourceID, err)
		return
	}
	if !ctrl.IsListeningEnabled() {
		return
	}

	ctx := context.Background()
	undetermined, err := ctrl.HasFilesWithUndeterminedType(ctx, dataSourceID)
	if err != nil {
		m.logger.Printf("SEVERE: Failed to query case database to determine drawables state (ds=%d): %v", dataSourceID, err)
		return
	}

	// More work may still surface drawables while any file's type is
	// undetermined.
	status := drawabledb.StatusComplete
	if undetermined {
		status = drawabledb.StatusDefault
	}
	if err := ctrl.Database().InsertOrUpdateDataSource(ctx, dataSourceID, status); err != nil {
		m.logger.Printf("SEVERE: Failed to set status for data source %d: %v", dataSourceID, err)
	}
}

// handleRemoteAnalysisCompleted reacts to another node finishing a data
// source: local drawables are now stale. If the module is enabled and the
// gallery view is open, the user is offered a rebuild through the prompt
// channel; a full channel drops the prompt, leaving only the stale flag.
func (m *Module) handleRemoteAnalysisCompleted(dataSourceID int64) {
	ctrl, err := m.GetController()
	if err != nil {
		m.logger.Printf("SEVERE: Failed to handle remote analysis-completed event (ds=%d): %v", dataSourceID, err)
		return
	}

	ctrl.SetStale(true)

	if !ctrl.IsListeningEnabled() || !m.viewOpen.Load() {
		return
	}

	prompt := RebuildPrompt{CaseName: ctrl.Case().Name, DataSourceID: dataSourceID}
	select {
	case m.prompts <- prompt:
	default:
		m.logger.Printf("Rebuild prompt dropped, channel full (ds=%d)", dataSourceID)
	}
}
