package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ddt-tool/ddt"
	"github.com/ddt-tool/ddt/pkg/adapters/memory"
	"github.com/ddt-tool/ddt/pkg/casestore"
	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/ports"
	"github.com/ddt-tool/ddt/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const figure1 = `{
  "packId": "figure1",
  "start": "start",
  "nodes": {
    "start": {"type": "decision", "text": "Failure?", "choices": [
      {"label": "Yes", "value": "yes", "next": "to2"},
      {"label": "No", "value": "no", "next": "done"}
    ]},
    "to2": {"type": "handoff", "handoff": {"targetPackId": "figure2"}},
    "done": {"type": "outcome"}
  }
}`

const figure2 = `{
  "packId": "figure2",
  "start": "intro",
  "nodes": {
    "intro": {"type": "info", "next": "end", "effects": [{"type": "SET", "path": "results.failure_type", "value": "HARDWARE"}]},
    "end": {"type": "outcome"}
  }
}`

func factory(t *testing.T) session.EngineFactory {
	t.Helper()
	src := memory.NewSource(map[string]string{"figure1": figure1, "figure2": figure2})
	return func() (*ddt.Engine, error) {
		return ddt.New("", ddt.WithSource(src), ddt.WithCaseTemplate(casestore.DefaultCase))
	}
}

func TestManager_CaseLifecycle(t *testing.T) {
	ctx := context.Background()
	exports := memory.NewExportStore()
	mgr := session.NewManager(factory(t), exports)

	id, view, err := mgr.Create(ctx, "figure1")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, "start", view.NodeID)

	saved, err := exports.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, saved.Trace, 1)

	view, err = mgr.Answer(ctx, id, "yes")
	require.NoError(t, err)
	assert.Equal(t, "to2", view.NodeID)

	view, err = mgr.Handoff(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "figure2", view.PackID)

	view, err = mgr.Continue(ctx, id)
	require.NoError(t, err)
	assert.True(t, view.Terminal)

	export, err := mgr.Export(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "HARDWARE", export.State["results"].(map[string]any)["failure_type"])

	saved, err = exports.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, export.Trace, saved.Trace)

	view, err = mgr.Back(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "intro", view.NodeID)

	view, err = mgr.Restart(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "figure2", view.PackID)
	assert.Equal(t, "intro", view.NodeID)

	ids, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	require.NoError(t, mgr.Delete(ctx, id))
	_, err = mgr.View(ctx, id)
	assert.ErrorIs(t, err, domain.ErrCaseNotFound)
	assert.ErrorIs(t, mgr.Delete(ctx, id), domain.ErrCaseNotFound)
}

func TestManager_ResumeFromExport(t *testing.T) {
	ctx := context.Background()
	exports := memory.NewExportStore()
	first := session.NewManager(factory(t), exports)

	id, _, err := first.Create(ctx, "figure1")
	require.NoError(t, err)
	_, err = first.Answer(ctx, id, "yes")
	require.NoError(t, err)

	// A second replica sharing the export store picks the case up.
	second := session.NewManager(factory(t), exports)
	view, err := second.View(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "to2", view.NodeID)
	assert.False(t, view.CanGoBack)

	view, err = second.Handoff(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "figure2", view.PackID)
}

func TestManager_RejectedOperationIsPersisted(t *testing.T) {
	ctx := context.Background()
	exports := memory.NewExportStore()
	mgr := session.NewManager(factory(t), exports)

	id, _, err := mgr.Create(ctx, "figure1")
	require.NoError(t, err)

	_, err = mgr.Answer(ctx, id, "maybe")
	require.ErrorIs(t, err, domain.ErrUnknownChoice)

	_, err = mgr.Continue(ctx, id)
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestManager_CreateUnknownPack(t *testing.T) {
	mgr := session.NewManager(factory(t), nil)
	_, _, err := mgr.Create(context.Background(), "figure9")
	var aerr *domain.AcquisitionError
	require.ErrorAs(t, err, &aerr)

	ids, err := mgr.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestManager_ConcurrentOperationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(factory(t), nil)
	id, _, err := mgr.Create(ctx, "figure1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.View(ctx, id)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err, "no request may observe ErrBusy")
	}
}

type recordingLocker struct {
	mu    sync.Mutex
	keys  []string
	ttls  []time.Duration
	fail  bool
	freed int
}

func (l *recordingLocker) Lock(_ context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return nil, errors.New("lock busy")
	}
	l.keys = append(l.keys, key)
	l.ttls = append(l.ttls, ttl)
	return func(context.Context) error {
		l.mu.Lock()
		l.freed++
		l.mu.Unlock()
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	ctx := context.Background()
	locker := &recordingLocker{}
	mgr := session.NewManager(factory(t), nil, session.WithLocker(locker), session.WithLockTTL(5*time.Second))

	id, _, err := mgr.Create(ctx, "figure1")
	require.NoError(t, err)
	_, err = mgr.Answer(ctx, id, "no")
	require.NoError(t, err)

	assert.Equal(t, []string{id, id}, locker.keys)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, locker.ttls)
	assert.Equal(t, 2, locker.freed)

	locker.fail = true
	_, err = mgr.View(ctx, id)
	assert.ErrorContains(t, err, "failed to acquire distributed lock")
}
