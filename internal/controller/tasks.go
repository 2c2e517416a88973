package controller

import (
	"context"

	"github.com/sleuthgo/galleryd/internal/datamodel"
	"github.com/sleuthgo/galleryd/internal/drawabledb"
)

// UpdateFileTask upserts one file's drawable record. Queued by the event
// router for each fully-processed file classified as drawable.
type UpdateFileTask struct {
	File datamodel.File
}

func (t UpdateFileTask) Run(ctx context.Context, db *drawabledb.DB) error {
	return db.InsertOrUpdateFile(ctx, t.File)
}

// RemoveFileTask deletes a file's drawable record, e.g. after the file was
// reclassified as known.
type RemoveFileTask struct {
	ObjID int64
}

func (t RemoveFileTask) Run(ctx context.Context, db *drawabledb.DB) error {
	return db.RemoveFile(ctx, t.ObjID)
}
