package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/dataset"
	"github.com/ocr-eval/harness/internal/storage/models"
	"github.com/ocr-eval/harness/pkg/logger"
)

var ErrRunNotActive = errors.New("run is not active")

// RunStore is satisfied by *sqlite.Client.
type RunStore interface {
	Store
	InsertRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, runID string, status models.RunStatus, errMsg string) error
}

type RunRequest struct {
	DatasetPath string
	StartIndex  int
	EndIndex    int
	Entries     []dataset.Keyed
}

// Manager runs pipelines in the background and tracks them until they
// reach a terminal status.
type Manager struct {
	runner *Runner
	store  RunStore
	hub    *Hub

	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	active  map[string]context.CancelFunc
	results map[string][]dataset.Item
	wg      sync.WaitGroup
}

func NewManager(runner *Runner, store RunStore, hub *Hub) *Manager {
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		runner:  runner,
		store:   store,
		hub:     hub,
		base:    base,
		cancel:  cancel,
		active:  make(map[string]context.CancelFunc),
		results: make(map[string][]dataset.Item),
	}
}

// Start records a pending run and processes it asynchronously. The entries
// must already be sliced to the requested range.
func (m *Manager) Start(ctx context.Context, req RunRequest) (*models.Run, error) {
	if len(req.Entries) == 0 {
		return nil, errors.New("no dataset entries in the requested range")
	}

	run := &models.Run{
		ID:          uuid.New().String(),
		Status:      models.RunPending,
		DatasetPath: req.DatasetPath,
		StartIndex:  req.StartIndex,
		EndIndex:    req.EndIndex,
		Models:      m.runner.ModelNames(),
		ItemsTotal:  len(req.Entries),
		CreatedAt:   time.Now(),
	}
	if err := m.store.InsertRun(ctx, run); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(m.base)
	m.mu.Lock()
	m.active[run.ID] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.execute(runCtx, run, req)
	}()

	return run, nil
}

func (m *Manager) execute(ctx context.Context, run *models.Run, req RunRequest) {
	items, err := m.runner.Run(ctx, run.ID, req.StartIndex, req.Entries)

	status := models.RunCompleted
	errMsg := ""
	switch {
	case errors.Is(err, context.Canceled):
		status = models.RunCancelled
		errMsg = err.Error()
	case err != nil:
		status = models.RunFailed
		errMsg = err.Error()
	}

	m.mu.Lock()
	delete(m.active, run.ID)
	if err == nil {
		m.results[run.ID] = items
	}
	m.mu.Unlock()

	// The run context may be cancelled already; the final status still has to land.
	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if ferr := m.store.FinishRun(finishCtx, run.ID, status, errMsg); ferr != nil {
		logger.Error("Failed to finish run", zap.String("run_id", run.ID), zap.Error(ferr))
	}

	if err != nil {
		logger.Warn("Pipeline run ended early", zap.String("run_id", run.ID), zap.String("status", string(status)), zap.Error(err))
	}

	m.hub.Publish(Event{
		Type:       EventRunFinished,
		RunID:      run.ID,
		ItemsDone:  len(items),
		ItemsTotal: run.ItemsTotal,
		Status:     string(status),
		Error:      errMsg,
	})
}

func (m *Manager) Cancel(runID string) error {
	m.mu.Lock()
	cancel, ok := m.active[runID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("run %s: %w", runID, ErrRunNotActive)
	}
	cancel()
	return nil
}

// Results returns the in-memory results of a run that completed in this
// process.
func (m *Manager) Results(runID string) ([]dataset.Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.results[runID]
	return items, ok
}

func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Shutdown cancels every active run and waits for them to record their
// final status, or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
