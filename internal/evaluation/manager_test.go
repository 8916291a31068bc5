package evaluation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocr-eval/harness/internal/storage/models"
)

func TestManager_RunsToCompletion(t *testing.T) {
	store := newMemStore()
	hub := NewHub(64)
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	runner := NewRunner([]TextCleaner{&fakeCleaner{name: "Echo", fn: identity}}, &fakeRater{reply: "5"}, Options{Store: store, Hub: hub})
	m := NewManager(runner, store, hub)

	run, err := m.Start(context.Background(), RunRequest{DatasetPath: "subset.json", StartIndex: 1, Entries: testEntries()})
	require.NoError(t, err)
	assert.Equal(t, models.RunPending, run.Status)
	assert.Equal(t, []string{"Echo"}, run.Models)

	var finished Event
	require.Eventually(t, func() bool {
		for {
			select {
			case e := <-events:
				if e.Type == EventRunFinished {
					finished = e
					return true
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Shutdown(context.Background()))

	assert.Equal(t, string(models.RunCompleted), finished.Status)
	assert.Equal(t, models.RunCompleted, store.run(run.ID).Status)
	assert.Equal(t, 3, store.run(run.ID).ItemsDone)

	items, ok := m.Results(run.ID)
	require.True(t, ok)
	assert.Len(t, items, 3)
	assert.Zero(t, m.Active())
	assert.ErrorIs(t, m.Cancel(run.ID), ErrRunNotActive)
}

func TestManager_CancelMarksRunCancelled(t *testing.T) {
	store := newMemStore()
	block := make(chan struct{})
	slow := &fakeCleaner{name: "Slow", fn: func(s string) (string, error) {
		<-block
		return s, nil
	}}

	m := NewManager(NewRunner([]TextCleaner{slow}, &fakeRater{reply: "1"}, Options{Store: store, RequestDelay: time.Hour}), store, nil)

	run, err := m.Start(context.Background(), RunRequest{StartIndex: 1, Entries: testEntries()})
	require.NoError(t, err)

	require.NoError(t, m.Cancel(run.ID))
	close(block)
	require.NoError(t, m.Shutdown(context.Background()))

	got := store.run(run.ID)
	assert.Equal(t, models.RunCancelled, got.Status)
	assert.NotEmpty(t, got.Error)
}

func TestManager_RejectsEmptyRange(t *testing.T) {
	m := NewManager(NewRunner(nil, nil, Options{}), newMemStore(), nil)
	_, err := m.Start(context.Background(), RunRequest{StartIndex: 1})
	assert.Error(t, err)
}
