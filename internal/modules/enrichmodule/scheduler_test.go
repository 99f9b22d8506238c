package enrichmodule

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumengallery/lumen/internal/modules/storemodule"
)

// stubProvider returns canned results, optionally blocking until
// released so tests can hold an enrichment in flight.
type stubProvider struct {
	name    string
	result  Result
	err     error
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Enrich(ctx context.Context, _ []byte, _ string) (Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.started != nil {
		close(p.started)
		p.started = nil
	}
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return p.result, p.err
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestStore(t *testing.T, ids ...string) *storemodule.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := storemodule.NewStore(filepath.Join(dir, "imageData.json"), nil)
	require.NoError(t, err)
	for _, id := range ids {
		_, _, err := store.Create(id, filepath.Join(dir, id))
		require.NoError(t, err)
	}
	return store
}

func newTestScheduler(store *storemodule.Store, ocr, vision Provider) *Scheduler {
	s := NewScheduler(store, ocr, vision, nil, nil, 3, hclog.NewNullLogger())
	s.readFile = func(string) ([]byte, error) { return []byte("data"), nil }
	return s
}

func TestScheduler_EnrichesNewRecord(t *testing.T) {
	store := newTestStore(t, "a.png")
	ocr := &stubProvider{name: "ocr", result: Result{OCRText: "hello", HasOCRText: true}}
	vision := &stubProvider{name: "vision", result: Result{
		Title:       "Sketch",
		Description: "a pencil sketch",
		Tags:        []string{"sketch", "pencil"},
		Colors:      []string{"Gray"},
	}}
	s := newTestScheduler(store, ocr, vision)

	require.NoError(t, s.Process(context.Background(), "a.png", false))

	rec, err := store.Get("a.png")
	require.NoError(t, err)
	assert.Equal(t, "hello", rec.OCRText)
	assert.Equal(t, "Sketch", rec.Title)
	assert.Equal(t, "a pencil sketch", rec.Description)
	assert.Equal(t, []string{"sketch", "pencil"}, rec.Tags)
	assert.Equal(t, []string{"Gray"}, rec.Colors)
	assert.True(t, rec.Processed)
	assert.True(t, rec.AIProcessed)
	assert.False(t, rec.NeedsTagging)
}

func TestScheduler_PartialResultsSurviveOtherProviderFailure(t *testing.T) {
	store := newTestStore(t, "a.png")
	ocr := &stubProvider{name: "ocr", result: Result{OCRText: "receipt total 12.50", HasOCRText: true}}
	vision := &stubProvider{name: "vision", err: &EnrichmentFailedError{Provider: "vision", Attempts: 3, Err: errors.New("overloaded")}}
	s := newTestScheduler(store, ocr, vision)

	err := s.Process(context.Background(), "a.png", false)
	require.Error(t, err)

	rec, gerr := store.Get("a.png")
	require.NoError(t, gerr)
	assert.Equal(t, "receipt total 12.50", rec.OCRText)
	assert.True(t, rec.Processed)
	assert.False(t, rec.AIProcessed)
	assert.True(t, rec.NeedsTagging)
}

func TestScheduler_AtMostOneInFlightPerRecord(t *testing.T) {
	store := newTestStore(t, "a.png")
	started := make(chan struct{})
	release := make(chan struct{})
	ocr := &stubProvider{name: "ocr", result: Result{HasOCRText: true}, started: started, release: release}
	s := newTestScheduler(store, ocr, nil)

	done := make(chan error, 1)
	go func() { done <- s.Process(context.Background(), "a.png", false) }()
	<-started

	assert.True(t, s.InFlight("a.png"))
	assert.ErrorIs(t, s.Process(context.Background(), "a.png", true), ErrAlreadyInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.InFlight("a.png"))
}

func TestScheduler_SkipsCompletedRecordsWithoutForce(t *testing.T) {
	store := newTestStore(t, "a.png")
	_, err := store.SetOCRText("a.png", "done")
	require.NoError(t, err)
	_, err = store.SetTags("a.png", []string{"cat"})
	require.NoError(t, err)

	ocr := &stubProvider{name: "ocr"}
	vision := &stubProvider{name: "vision"}
	s := newTestScheduler(store, ocr, vision)

	require.NoError(t, s.Process(context.Background(), "a.png", false))
	assert.Zero(t, ocr.callCount())
	assert.Zero(t, vision.callCount())

	require.NoError(t, s.Process(context.Background(), "a.png", true))
	assert.Equal(t, 1, ocr.callCount())
	assert.Equal(t, 1, vision.callCount())
}

func TestScheduler_ProcessBacklogCoversAllPending(t *testing.T) {
	store := newTestStore(t, "a.png", "b.png", "c.png", "d.png", "e.png")
	ocr := &stubProvider{name: "ocr", result: Result{OCRText: "x", HasOCRText: true}}
	vision := &stubProvider{name: "vision", result: Result{Tags: []string{"t"}}}
	s := newTestScheduler(store, ocr, vision)

	require.NoError(t, s.ProcessBacklog(context.Background()))

	for _, rec := range store.GetAll() {
		assert.True(t, rec.Processed, rec.Name)
		assert.False(t, rec.NeedsTagging, rec.Name)
	}
	assert.Equal(t, 5, ocr.callCount())
}

func TestScheduler_UnreadableFileFailsThatRecordOnly(t *testing.T) {
	store := newTestStore(t, "a.png", "b.png")
	ocr := &stubProvider{name: "ocr", result: Result{OCRText: "x", HasOCRText: true}}
	s := newTestScheduler(store, ocr, nil)
	s.readFile = func(path string) ([]byte, error) {
		if filepath.Base(path) == "a.png" {
			return nil, errors.New("gone")
		}
		return []byte("data"), nil
	}

	require.NoError(t, s.ProcessBacklog(context.Background()))

	recA, err := store.Get("a.png")
	require.NoError(t, err)
	assert.False(t, recA.Processed)

	recB, err := store.Get("b.png")
	require.NoError(t, err)
	assert.True(t, recB.Processed)
}

func TestScheduler_ProcessUnknownRecord(t *testing.T) {
	store := newTestStore(t)
	s := newTestScheduler(store, &stubProvider{name: "ocr"}, nil)

	err := s.Process(context.Background(), "missing.png", true)
	assert.ErrorIs(t, err, storemodule.ErrRecordNotFound)
}
