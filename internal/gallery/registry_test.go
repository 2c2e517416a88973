package gallery

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleuthgo/galleryd/internal/casedb"
	"github.com/sleuthgo/galleryd/internal/controller"
	"github.com/sleuthgo/galleryd/internal/events"
)

func newTestRegistry(t *testing.T) (*Registry, *casedb.Manager) {
	t.Helper()
	cases := casedb.NewManager(t.TempDir(), events.NewDispatcher(), nil)
	t.Cleanup(cases.Close)
	return NewRegistry(cases, NewEnablementPolicy(), nil), cases
}

func TestRegistryGetOrCreateWithoutCaseFails(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.GetOrCreate()
	assert.ErrorIs(t, err, ErrNoCaseOpen)
}

func TestRegistryGetOrCreateReturnsSameController(t *testing.T) {
	setEnabledByDefault(t, true)
	r, cases := newTestRegistry(t)

	_, err := cases.Open(context.Background(), "case1")
	require.NoError(t, err)

	first, err := r.GetOrCreate()
	require.NoError(t, err)
	defer r.Clear()

	second, err := r.GetOrCreate()
	require.NoError(t, err)
	assert.Same(t, first, second)

	assert.True(t, first.IsListeningEnabled(), "initial listening from policy")
}

func TestRegistryInitialListeningFollowsPolicy(t *testing.T) {
	setEnabledByDefault(t, false)
	r, cases := newTestRegistry(t)

	_, err := cases.Open(context.Background(), "case1")
	require.NoError(t, err)

	ctrl, err := r.GetOrCreate()
	require.NoError(t, err)
	defer r.Clear()

	assert.False(t, ctrl.IsListeningEnabled())
}

func TestRegistryReplaceShutsDownPrevious(t *testing.T) {
	setEnabledByDefault(t, true)
	r, cases := newTestRegistry(t)
	ctx := context.Background()

	c1, err := cases.Open(ctx, "case1")
	require.NoError(t, err)
	first, err := r.GetOrCreate()
	require.NoError(t, err)
	assert.Equal(t, c1.Name, first.Case().Name)

	c2, err := cases.Open(ctx, "case2")
	require.NoError(t, err)
	require.NoError(t, r.Replace(c2))
	defer r.Clear()

	// The old controller no longer accepts work.
	err = first.QueueTask(controller.UpdateFileTask{})
	require.Error(t, err)

	current, err := r.GetOrCreate()
	require.NoError(t, err)
	assert.Equal(t, "case2", current.Case().Name)
}

func TestRegistryClearLeavesRegistryEmpty(t *testing.T) {
	setEnabledByDefault(t, true)
	r, cases := newTestRegistry(t)

	_, err := cases.Open(context.Background(), "case1")
	require.NoError(t, err)
	first, err := r.GetOrCreate()
	require.NoError(t, err)

	r.Clear()
	// Clear again is a no-op.
	r.Clear()

	err = first.QueueTask(controller.UpdateFileTask{})
	require.Error(t, err)

	// A later lookup builds a fresh controller for the still-open case.
	second, err := r.GetOrCreate()
	require.NoError(t, err)
	defer r.Clear()
	assert.NotSame(t, first, second)
}

func TestRegistryConcurrentGetOrCreate(t *testing.T) {
	setEnabledByDefault(t, true)
	r, cases := newTestRegistry(t)

	_, err := cases.Open(context.Background(), "case1")
	require.NoError(t, err)
	defer r.Clear()

	const goroutines = 16
	controllers := make([]*controller.Controller, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctrl, err := r.GetOrCreate()
			if err == nil {
				controllers[i] = ctrl
			}
		}(i)
	}
	wg.Wait()

	require.NotNil(t, controllers[0])
	for i := 1; i < goroutines; i++ {
		assert.Same(t, controllers[0], controllers[i])
	}
}
