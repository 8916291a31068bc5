package evaluation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocr-eval/harness/internal/dataset"
	"github.com/ocr-eval/harness/internal/preclean"
	"github.com/ocr-eval/harness/internal/storage/models"
)

type fakeCleaner struct {
	name  string
	fn    func(string) (string, error)
	calls atomic.Int32
}

func (c *fakeCleaner) Name() string { return c.name }

func (c *fakeCleaner) Clean(_ context.Context, ocr string) (string, error) {
	c.calls.Add(1)
	return c.fn(ocr)
}

type fakeRater struct {
	reply string
	err   error
	calls atomic.Int32
}

func (r *fakeRater) Model() string { return "judge-model" }

func (r *fakeRater) Rate(_ context.Context, _, _ string) (string, error) {
	r.calls.Add(1)
	return r.reply, r.err
}

type memStore struct {
	mu       sync.Mutex
	runs     map[string]*models.Run
	outputs  []models.ModelOutput
	progress []int
}

func newMemStore() *memStore {
	return &memStore{runs: make(map[string]*models.Run)}
}

func (s *memStore) UpsertModelOutput(_ context.Context, out *models.ModelOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, *out)
	return nil
}

func (s *memStore) UpdateRunProgress(_ context.Context, runID string, status models.RunStatus, done int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, done)
	if run, ok := s.runs[runID]; ok {
		run.Status = status
		run.ItemsDone = done
	}
	return nil
}

func (s *memStore) InsertRun(_ context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *memStore) FinishRun(_ context.Context, runID string, status models.RunStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return errors.New("not found")
	}
	run.Status = status
	run.Error = errMsg
	return nil
}

func (s *memStore) run(id string) models.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.runs[id]
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string]string)} }

func (c *mapCache) get(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) set(key, v string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
	return nil
}

func (c *mapCache) GetCleaned(_ context.Context, cleaner, ocr string) (string, bool, error) {
	return c.get("c|" + cleaner + "|" + ocr)
}

func (c *mapCache) SetCleaned(_ context.Context, cleaner, ocr, cleaned string) error {
	return c.set("c|"+cleaner+"|"+ocr, cleaned)
}

func (c *mapCache) GetJudgement(_ context.Context, model, cleaned, gt string) (string, bool, error) {
	return c.get("j|" + model + "|" + cleaned + "|" + gt)
}

func (c *mapCache) SetJudgement(_ context.Context, model, cleaned, gt, raw string) error {
	return c.set("j|"+model+"|"+cleaned+"|"+gt, raw)
}

func identity(s string) (string, error) { return s, nil }

func testEntries() []dataset.Keyed {
	return []dataset.Keyed{
		{Key: "3", Entry: dataset.Entry{OCR: "the cat sat", Clean: "the cat sat"}},
		{Key: "4", Entry: dataset.Entry{OCR: "a dog ran", Clean: "a dog ran far"}},
		{Key: "5", Entry: dataset.Entry{OCR: "birds fly", Clean: "birds fly"}},
	}
}

func TestRunner_ScoresEveryItemInOrder(t *testing.T) {
	store := newMemStore()
	cleaner := &fakeCleaner{name: "Echo", fn: identity}
	judge := &fakeRater{reply: "Score: 4"}

	r := NewRunner([]TextCleaner{cleaner}, judge, Options{Workers: 3, Diffs: true, Store: store})

	items, err := r.Run(context.Background(), "run-1", 3, testEntries())
	require.NoError(t, err)
	require.Len(t, items, 3)

	for i, item := range items {
		assert.Equal(t, 3+i, item.ItemID)
		require.Len(t, item.ModelOutputs, 1)
	}

	perfect := items[0].ModelOutputs[0]
	require.NotNil(t, perfect.Metrics)
	assert.Zero(t, perfect.Metrics.WER)
	assert.Equal(t, 4, perfect.Judgement.Score)
	assert.Equal(t, "Score: 4", perfect.Judgement.RawScoreText)
	assert.Empty(t, perfect.Differences)

	missing := items[1].ModelOutputs[0]
	assert.InDelta(t, 0.25, missing.Metrics.WER, 1e-9)
	require.Len(t, missing.Differences, 1)
	assert.Equal(t, "delete", string(missing.Differences[0].Type))

	assert.Len(t, store.outputs, 3)
	assert.Equal(t, 3, store.progress[len(store.progress)-1])
	assert.Equal(t, int32(3), judge.calls.Load())
}

func TestRunner_CleanErrorIsRecorded(t *testing.T) {
	store := newMemStore()
	broken := &fakeCleaner{name: "Broken", fn: func(string) (string, error) { return "", errors.New("503 from provider") }}
	judge := &fakeRater{reply: "5"}

	r := NewRunner([]TextCleaner{broken}, judge, Options{Store: store})

	items, err := r.Run(context.Background(), "run-1", 1, testEntries()[:1])
	require.NoError(t, err)

	out := items[0].ModelOutputs[0]
	assert.Nil(t, out.Metrics)
	assert.Nil(t, out.Judgement)
	assert.True(t, strings.HasPrefix(out.CleanedText, "[ERROR:"))
	assert.NotNil(t, out.Differences)
	assert.Zero(t, judge.calls.Load())

	require.Len(t, store.outputs, 1)
	assert.Equal(t, "503 from provider", store.outputs[0].CleanError)
	assert.False(t, store.outputs[0].Judged)
}

func TestRunner_UnparsedAndFailedJudgements(t *testing.T) {
	tests := []struct {
		name    string
		judge   *fakeRater
		wantRaw string
	}{
		{name: "no integer", judge: &fakeRater{reply: "excellent"}, wantRaw: "excellent"},
		{name: "judge error", judge: &fakeRater{err: errors.New("quota")}, wantRaw: "[JUDGE_ERROR: quota]"},
		{
			name:    "judge error with status code",
			judge:   &fakeRater{err: errors.New("failed to judge: error, status code: 500, message: upstream")},
			wantRaw: "[JUDGE_ERROR: failed to judge: error, status code: 500, message: upstream]",
		},
		{name: "score above scale", judge: &fakeRater{reply: "10"}, wantRaw: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner([]TextCleaner{&fakeCleaner{name: "Echo", fn: identity}}, tt.judge, Options{})

			items, err := r.Run(context.Background(), "run-1", 1, testEntries()[:1])
			require.NoError(t, err)

			j := items[0].ModelOutputs[0].Judgement
			require.NotNil(t, j)
			assert.Equal(t, dataset.UnparsedScore, j.Score)
			assert.Equal(t, tt.wantRaw, j.RawScoreText)
			assert.Nil(t, j.AutomatedScore())

			scored := dataset.ScoredItems(items)
			require.Len(t, scored, 1)
			assert.Nil(t, scored[0].AutomatedScore)
		})
	}
}

func TestRunner_PreCleanAndCache(t *testing.T) {
	cache := newMapCache()
	var seen []string
	var mu sync.Mutex
	cleaner := &fakeCleaner{name: "Echo", fn: func(s string) (string, error) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
		return s, nil
	}}
	judge := &fakeRater{reply: "3"}

	entries := []dataset.Keyed{{Key: "1", Entry: dataset.Entry{OCR: "hyphen-\nated  text", Clean: "hyphenated text"}}}
	r := NewRunner([]TextCleaner{cleaner}, judge, Options{PreClean: preclean.New(nil), Cache: cache})

	first, err := r.Run(context.Background(), "run-1", 1, entries)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), "run-2", 1, entries)
	require.NoError(t, err)

	assert.Equal(t, []string{"hyphenated text"}, seen)
	assert.Equal(t, "hyphenated text", first[0].OriginalOCR)
	assert.Equal(t, int32(1), cleaner.calls.Load())
	assert.Equal(t, int32(1), judge.calls.Load())
	assert.Equal(t, first[0].ModelOutputs[0].Judgement.Score, second[0].ModelOutputs[0].Judgement.Score)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner([]TextCleaner{&fakeCleaner{name: "Echo", fn: identity}}, &fakeRater{reply: "1"}, Options{RequestDelay: time.Hour})

	_, err := r.Run(ctx, "run-1", 1, testEntries())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_PublishesEvents(t *testing.T) {
	hub := NewHub(32)
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	r := NewRunner([]TextCleaner{&fakeCleaner{name: "Echo", fn: identity}}, &fakeRater{reply: "5"}, Options{Hub: hub})
	_, err := r.Run(context.Background(), "run-1", 1, testEntries()[:2])
	require.NoError(t, err)

	var types []EventType
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}

	require.NotEmpty(t, types)
	assert.Equal(t, EventRunStarted, types[0])
	assert.Len(t, types, 5)
	assert.Contains(t, types, EventOutputScored)
	assert.Contains(t, types, EventItemCompleted)
}
