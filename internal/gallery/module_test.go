package gallery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleuthgo/galleryd/internal/casedb"
	"github.com/sleuthgo/galleryd/internal/datamodel"
	"github.com/sleuthgo/galleryd/internal/drawabledb"
	"github.com/sleuthgo/galleryd/internal/events"
)

type moduleHarness struct {
	dispatcher *events.Dispatcher
	cases      *casedb.Manager
	module     *Module
	theCase    *datamodel.Case
}

// newModuleHarness wires a module with listeners registered and an open,
// enabled case, the way serve does it: listeners first, then the case open
// event builds the controller.
func newModuleHarness(t *testing.T) *moduleHarness {
	t.Helper()
	setEnabledByDefault(t, true)

	dispatcher := events.NewDispatcher()
	cases := casedb.NewManager(t.TempDir(), dispatcher, nil)
	module := NewModule(cases, dispatcher, nil)
	module.Start(true)

	theCase, err := cases.Open(context.Background(), "case1")
	require.NoError(t, err)

	t.Cleanup(func() {
		cases.Close()
		module.registry.Clear()
	})
	return &moduleHarness{dispatcher: dispatcher, cases: cases, module: module, theCase: theCase}
}

func TestFileDoneLocalDrawableIsTracked(t *testing.T) {
	h := newModuleHarness(t)
	ctx := context.Background()

	ctrl, err := h.module.GetController()
	require.NoError(t, err)
	require.True(t, ctrl.IsListeningEnabled())

	h.dispatcher.PublishModule(events.FileDone{
		File:   datamodel.File{ObjID: 1, DataSourceID: 1, Path: "a.jpg", MIMEType: "image/jpeg"},
		Origin: events.OriginLocal,
	})

	require.Eventually(t, func() bool {
		in, err := ctrl.Database().IsInDB(ctx, 1)
		return err == nil && in
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileDoneRemoteIsIgnored(t *testing.T) {
	h := newModuleHarness(t)

	h.dispatcher.PublishModule(events.FileDone{
		File:   datamodel.File{ObjID: 1, DataSourceID: 1, Path: "a.jpg", MIMEType: "image/jpeg"},
		Origin: events.OriginRemote,
	})

	ctrl, err := h.module.GetController()
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	count, err := ctrl.Database().CountFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestFileDoneDirectoryIsIgnored(t *testing.T) {
	h := newModuleHarness(t)

	h.dispatcher.PublishModule(events.FileDone{
		File:   datamodel.File{ObjID: 1, Path: "photos", MIMEType: "image/jpeg", IsDir: true},
		Origin: events.OriginLocal,
	})

	ctrl, err := h.module.GetController()
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	count, err := ctrl.Database().CountFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestFileDoneIgnoredWhileListeningDisabled(t *testing.T) {
	h := newModuleHarness(t)

	ctrl, err := h.module.GetController()
	require.NoError(t, err)
	ctrl.SetListeningEnabled(false)

	h.dispatcher.PublishModule(events.FileDone{
		File:   datamodel.File{ObjID: 1, Path: "a.jpg", MIMEType: "image/jpeg"},
		Origin: events.OriginLocal,
	})

	time.Sleep(100 * time.Millisecond)
	count, err := ctrl.Database().CountFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestFileDoneNonDrawableIsSkipped(t *testing.T) {
	h := newModuleHarness(t)
	ctrl, err := h.module.GetController()
	require.NoError(t, err)

	h.dispatcher.PublishModule(events.FileDone{
		File:   datamodel.File{ObjID: 1, Path: "doc.pdf", MIMEType: "application/pdf"},
		Origin: events.OriginLocal,
	})
	h.dispatcher.PublishModule(events.FileDone{
		File:   datamodel.File{ObjID: 2, Path: "a.jpg", MIMEType: "image/jpeg", Known: datamodel.Known},
		Origin: events.OriginLocal,
	})

	time.Sleep(100 * time.Millisecond)
	count, err := ctrl.Database().CountFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDataAddedUpdatesCachesEvenWhileDisabled(t *testing.T) {
	h := newModuleHarness(t)
	ctx := context.Background()

	ctrl, err := h.module.GetController()
	require.NoError(t, err)
	ctrl.SetListeningEnabled(false)

	h.dispatcher.PublishModule(events.DataAdded{
		Type:      datamodel.ArtifactEXIFMetadata,
		Artifacts: []datamodel.Artifact{{Type: datamodel.ArtifactEXIFMetadata, ObjID: 10}},
		Origin:    events.OriginLocal,
	})
	h.dispatcher.PublishModule(events.DataAdded{
		Type:      datamodel.ArtifactHashSetHit,
		Artifacts: []datamodel.Artifact{{Type: datamodel.ArtifactHashSetHit, ObjID: 11}},
		Origin:    events.OriginLocal,
	})
	// Other artifact types are not cached.
	h.dispatcher.PublishModule(events.DataAdded{
		Type:      datamodel.ArtifactOther,
		Artifacts: []datamodel.Artifact{{Type: datamodel.ArtifactOther, ObjID: 12}},
		Origin:    events.OriginLocal,
	})

	in, err := ctrl.Database().InCache(ctx, "exif_cache", 10)
	require.NoError(t, err)
	assert.True(t, in)
	in, err = ctrl.Database().InCache(ctx, "hashset_cache", 11)
	require.NoError(t, err)
	assert.True(t, in)
	in, err = ctrl.Database().InCache(ctx, "exif_cache", 12)
	require.NoError(t, err)
	assert.False(t, in)
}

func TestCaseClosedTearsDownControllerAndView(t *testing.T) {
	h := newModuleHarness(t)

	viewClosed := false
	h.module.SetViewCloser(func() { viewClosed = true })
	h.module.SetViewOpen(true)

	_, err := h.module.GetController()
	require.NoError(t, err)

	h.cases.Close()

	assert.True(t, viewClosed)
	assert.False(t, h.module.viewOpen.Load())
	_, err = h.module.GetController()
	assert.ErrorIs(t, err, ErrNoCaseOpen)
}

func TestCaseOpenedReplacesController(t *testing.T) {
	h := newModuleHarness(t)

	first, err := h.module.GetController()
	require.NoError(t, err)
	assert.Equal(t, "case1", first.Case().Name)

	_, err = h.cases.Open(context.Background(), "case2")
	require.NoError(t, err)

	current, err := h.module.GetController()
	require.NoError(t, err)
	assert.Equal(t, "case2", current.Case().Name)
}

func TestDataSourceAddedRegistersDefaultStatus(t *testing.T) {
	h := newModuleHarness(t)
	ctx := context.Background()

	ds, err := h.cases.AddDataSource(ctx, "usb", "/evidence/usb")
	require.NoError(t, err)

	ctrl, err := h.module.GetController()
	require.NoError(t, err)
	status, err := ctrl.Database().DataSourceStatus(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, drawabledb.StatusDefault, status)
}

func TestAnalysisStartedMarksInProgress(t *testing.T) {
	h := newModuleHarness(t)
	ctx := context.Background()

	h.dispatcher.PublishJob(events.AnalysisStarted{DataSourceID: 3, Origin: events.OriginLocal})

	ctrl, err := h.module.GetController()
	require.NoError(t, err)
	status, err := ctrl.Database().DataSourceStatus(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, drawabledb.StatusInProgress, status)

	// A remote start does not touch local status.
	h.dispatcher.PublishJob(events.AnalysisStarted{DataSourceID: 4, Origin: events.OriginRemote})
	status, err = ctrl.Database().DataSourceStatus(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, drawabledb.StatusDefault, status)
}

func TestLocalAnalysisCompletedStatusDependsOnUndeterminedTypes(t *testing.T) {
	h := newModuleHarness(t)
	ctx := context.Background()

	store, err := h.cases.CurrentStore()
	require.NoError(t, err)
	_, err = store.AddFile(ctx, datamodel.File{DataSourceID: 1, Name: "a.jpg", Path: "a.jpg", MIMEType: "image/jpeg"})
	require.NoError(t, err)
	_, err = store.AddFile(ctx, datamodel.File{DataSourceID: 2, Name: "b.bin", Path: "b.bin"})
	require.NoError(t, err)

	h.dispatcher.PublishJob(events.AnalysisCompleted{DataSourceID: 1, Origin: events.OriginLocal})
	h.dispatcher.PublishJob(events.AnalysisCompleted{DataSourceID: 2, Origin: events.OriginLocal})

	ctrl, err := h.module.GetController()
	require.NoError(t, err)
	status, err := ctrl.Database().DataSourceStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, drawabledb.StatusComplete, status)

	// Undetermined types may still surface drawables later.
	status, err = ctrl.Database().DataSourceStatus(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, drawabledb.StatusDefault, status)
}

func TestRemoteAnalysisCompletedSetsStaleAndPrompts(t *testing.T) {
	h := newModuleHarness(t)

	h.module.SetViewOpen(true)
	h.dispatcher.PublishJob(events.AnalysisCompleted{DataSourceID: 5, Origin: events.OriginRemote})

	ctrl, err := h.module.GetController()
	require.NoError(t, err)
	assert.True(t, ctrl.IsStale())

	select {
	case prompt := <-h.module.Prompts():
		assert.Equal(t, "case1", prompt.CaseName)
		assert.Equal(t, int64(5), prompt.DataSourceID)
	default:
		t.Fatal("expected a rebuild prompt")
	}
}

func TestRemoteAnalysisCompletedNoPromptWhenViewClosed(t *testing.T) {
	h := newModuleHarness(t)

	h.dispatcher.PublishJob(events.AnalysisCompleted{DataSourceID: 5, Origin: events.OriginRemote})

	ctrl, err := h.module.GetController()
	require.NoError(t, err)
	assert.True(t, ctrl.IsStale(), "stale is set regardless of the view")

	select {
	case <-h.module.Prompts():
		t.Fatal("no prompt expected while the view is closed")
	default:
	}
}

func TestRemoteAnalysisCompletedNoPromptWhileDisabled(t *testing.T) {
	h := newModuleHarness(t)

	ctrl, err := h.module.GetController()
	require.NoError(t, err)
	ctrl.SetListeningEnabled(false)
	h.module.SetViewOpen(true)

	h.dispatcher.PublishJob(events.AnalysisCompleted{DataSourceID: 5, Origin: events.OriginRemote})

	assert.True(t, ctrl.IsStale())
	select {
	case <-h.module.Prompts():
		t.Fatal("no prompt expected while the module is disabled")
	default:
	}
}

func TestTagEventsFireOnlyForTrackedObjects(t *testing.T) {
	h := newModuleHarness(t)
	ctx := context.Background()

	var got []TagEvent
	h.module.SubscribeTags(func(ev TagEvent) { got = append(got, ev) })

	ctrl, err := h.module.GetController()
	require.NoError(t, err)

	// Untracked object: cached, but no event.
	h.dispatcher.PublishCase(events.ContentTagAdded{Tag: datamodel.Tag{Name: "Bookmark", ObjID: 20}})
	in, err := ctrl.Database().InCache(ctx, "tag_cache", 20)
	require.NoError(t, err)
	assert.True(t, in)
	assert.Empty(t, got)

	// Tracked object: event fires, deletion too.
	require.NoError(t, ctrl.Database().InsertOrUpdateFile(ctx, datamodel.File{ObjID: 21, DataSourceID: 1, Path: "a.jpg"}))
	h.dispatcher.PublishCase(events.ContentTagAdded{Tag: datamodel.Tag{Name: "Bookmark", ObjID: 21}})
	h.dispatcher.PublishCase(events.ContentTagDeleted{Tag: datamodel.Tag{Name: "Bookmark", ObjID: 21}})

	require.Len(t, got, 2)
	assert.False(t, got[0].Deleted)
	assert.True(t, got[1].Deleted)
	assert.Equal(t, int64(21), got[1].Tag.ObjID)
}

func TestHeadlessStartRegistersNoListeners(t *testing.T) {
	setEnabledByDefault(t, true)

	dispatcher := events.NewDispatcher()
	cases := casedb.NewManager(t.TempDir(), dispatcher, nil)
	module := NewModule(cases, dispatcher, nil)
	module.Start(false)

	_, err := cases.Open(context.Background(), "case1")
	require.NoError(t, err)
	defer cases.Close()
	defer module.registry.Clear()

	h := &moduleHarness{dispatcher: dispatcher, cases: cases, module: module}
	h.dispatcher.PublishModule(events.FileDone{
		File:   datamodel.File{ObjID: 1, Path: "a.jpg", MIMEType: "image/jpeg"},
		Origin: events.OriginLocal,
	})
	h.dispatcher.PublishJob(events.AnalysisStarted{DataSourceID: 1, Origin: events.OriginLocal})

	// Nothing reacted: the controller built on demand afterwards is empty.
	ctrl, err := module.GetController()
	require.NoError(t, err)
	count, err := ctrl.Database().CountFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	status, err := ctrl.Database().DataSourceStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, drawabledb.StatusDefault, status)
}
