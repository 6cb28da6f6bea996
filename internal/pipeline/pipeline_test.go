package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lamim/paperforge/internal/document"
	"github.com/lamim/paperforge/internal/generator"
	"github.com/lamim/paperforge/internal/sections"
	"github.com/lamim/paperforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator answers section requests from a per-title table
type scriptedGenerator struct {
	mu       sync.Mutex
	requests []generator.SectionRequest
	replies  map[string]string
	failures map[string]error
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	hook     func(ctx context.Context, req generator.SectionRequest) error
}

func (g *scriptedGenerator) GenerateOutline(context.Context, models.PaperConfig) ([]models.OutlineItem, error) {
	return nil, errors.New("not used")
}

func (g *scriptedGenerator) GenerateSection(ctx context.Context, req generator.SectionRequest) (string, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		prev := g.maxSeen.Load()
		if n <= prev || g.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}

	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.hook != nil {
		if err := g.hook(ctx, req); err != nil {
			return "", err
		}
	}
	if err := g.failures[req.Section.Title]; err != nil {
		return "", err
	}
	if reply, ok := g.replies[req.Section.Title]; ok {
		return reply, nil
	}
	return "content of " + req.Section.Title, nil
}

func (g *scriptedGenerator) titles() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.requests))
	for i, r := range g.requests {
		out[i] = r.Section.Title
	}
	return out
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished []models.Section
}

func (o *recordingObserver) SectionStarted(s models.Section) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, s.Title)
}

func (o *recordingObserver) SectionFinished(s models.Section, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, s)
}

func newStore(t *testing.T, names ...string) *sections.Store {
	t.Helper()
	store := sections.NewStore()
	items := make([]models.OutlineItem, len(names))
	for i, n := range names {
		items[i] = models.OutlineItem{Title: n, Description: "about " + n}
	}
	require.NoError(t, store.Replace(items))
	store.Freeze()
	return store
}

func newPipeline(store *sections.Store, gen generator.ContentGenerator, window int) *Pipeline {
	return New(store, gen, Options{
		Paper:              models.DefaultPaperConfig(),
		ContextWindowChars: window,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRun_DraftsInListOrder(t *testing.T) {
	store := newStore(t, "Intro", "Method", "Results", "Conclusion")
	gen := &scriptedGenerator{}
	obs := &recordingObserver{}
	p := newPipeline(store, gen, 0)
	p.AddObserver(obs)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{"Intro", "Method", "Results", "Conclusion"}, gen.titles())
	assert.Equal(t, int32(1), gen.maxSeen.Load())
	assert.True(t, store.AllCompleted())
	assert.Equal(t, Idle, p.State())

	for _, s := range store.Snapshot() {
		assert.Equal(t, "content of "+s.Title, s.Content)
	}
	assert.Equal(t, gen.titles(), obs.started)
	require.Len(t, obs.finished, 4)
	assert.Equal(t, models.StatusCompleted, obs.finished[3].Status)
}

func TestRun_FailureIsRecordedAndSkipped(t *testing.T) {
	store := newStore(t, "A", "B", "C")
	gen := &scriptedGenerator{failures: map[string]error{"B": errors.New("status 500")}}
	p := newPipeline(store, gen, 0)

	require.NoError(t, p.Run(context.Background()))

	list := store.Snapshot()
	assert.Equal(t, models.StatusCompleted, list[0].Status)
	assert.Equal(t, models.StatusFailed, list[1].Status)
	assert.Equal(t, "status 500", list[1].Error)
	assert.Empty(t, list[1].Content)
	assert.Equal(t, models.StatusCompleted, list[2].Status)
	assert.True(t, store.Settled())
	assert.False(t, store.AllCompleted())

	// C's previous context skips the failed B and uses A
	assert.Equal(t, "content of A", gen.requests[2].PreviousContext)
}

func TestRun_EmptyContentFails(t *testing.T) {
	store := newStore(t, "A")
	gen := &scriptedGenerator{replies: map[string]string{"A": "```latex\n\n```"}}
	p := newPipeline(store, gen, 0)

	require.NoError(t, p.Run(context.Background()))

	got := store.Snapshot()[0]
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, generator.ErrEmptySection.Error(), got.Error)
}

func TestRun_CleansFences(t *testing.T) {
	store := newStore(t, "A")
	gen := &scriptedGenerator{replies: map[string]string{"A": "```latex\n\\section{A}\n```"}}
	require.NoError(t, newPipeline(store, gen, 0).Run(context.Background()))
	assert.Equal(t, "\\section{A}", store.Snapshot()[0].Content)
}

func TestRun_NothingPending(t *testing.T) {
	store := newStore(t)
	gen := &scriptedGenerator{}
	p := newPipeline(store, gen, 0)

	require.NoError(t, p.Run(context.Background()))
	assert.Empty(t, gen.titles())
}

func TestRun_PicksUpRetriedSections(t *testing.T) {
	store := newStore(t, "A", "B")
	gen := &scriptedGenerator{failures: map[string]error{"A": errors.New("timeout")}}
	p := newPipeline(store, gen, 0)
	require.NoError(t, p.Run(context.Background()))

	gen.failures = nil
	assert.Equal(t, 1, store.RetryFailed())
	require.NoError(t, p.Run(context.Background()))

	assert.True(t, store.AllCompleted())
	assert.Equal(t, []string{"A", "B", "A"}, gen.titles())
	assert.Equal(t, "content of B", gen.requests[2].PreviousContext)
}

func TestRun_RetriedSectionSeesLastCompleted(t *testing.T) {
	store := newStore(t, "Intro", "Method", "Results")
	gen := &scriptedGenerator{
		failures: map[string]error{"Intro": errors.New("status 500")},
		replies:  map[string]string{"Results": "RESULTS-TAIL"},
	}
	p := newPipeline(store, gen, 0)
	require.NoError(t, p.Run(context.Background()))

	gen.failures = nil
	assert.Equal(t, 1, store.RetryFailed())
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, gen.requests, 4)
	assert.Equal(t, "Intro", gen.requests[3].Section.Title)
	assert.Equal(t, "RESULTS-TAIL", gen.requests[3].PreviousContext)
}

func TestAdvance_SingleStep(t *testing.T) {
	store := newStore(t, "A", "B")
	p := newPipeline(store, &scriptedGenerator{}, 0)

	progressed, err := p.Advance(context.Background())
	require.NoError(t, err)
	assert.True(t, progressed)

	counts := store.Counts()
	assert.Equal(t, 1, counts[models.StatusCompleted])
	assert.Equal(t, 1, counts[models.StatusPending])

	_, err = p.Advance(context.Background())
	require.NoError(t, err)
	progressed, err = p.Advance(context.Background())
	require.NoError(t, err)
	assert.False(t, progressed)
}

func TestAdvance_BusyWhileInFlight(t *testing.T) {
	store := newStore(t, "A", "B")
	entered := make(chan struct{})
	release := make(chan struct{})
	gen := &scriptedGenerator{hook: func(context.Context, generator.SectionRequest) error {
		close(entered)
		<-release
		return nil
	}}
	p := newPipeline(store, gen, 0)

	done := make(chan error, 1)
	go func() {
		_, err := p.Advance(context.Background())
		done <- err
	}()
	<-entered

	progressed, err := p.Advance(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, progressed)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"A"}, gen.titles())
	assert.Equal(t, 1, store.Counts()[models.StatusPending])
}

func TestStart_SecondRunIsRejected(t *testing.T) {
	store := newStore(t, "A", "B")
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	gen := &scriptedGenerator{hook: func(context.Context, generator.SectionRequest) error {
		entered <- struct{}{}
		<-release
		return nil
	}}
	p := newPipeline(store, gen, 0)

	require.True(t, p.Start(context.Background()))
	<-entered
	assert.Equal(t, Running, p.State())
	assert.False(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Run(context.Background()), ErrBusy)

	close(release)
	require.NoError(t, p.Wait())
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, []string{"A", "B"}, gen.titles())
}

func TestRun_ContextCancelRevertsSection(t *testing.T) {
	store := newStore(t, "A", "B")
	ctx, cancel := context.WithCancel(context.Background())
	gen := &scriptedGenerator{hook: func(ctx context.Context, req generator.SectionRequest) error {
		if req.Section.Title == "B" {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}}
	p := newPipeline(store, gen, 0)

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	list := store.Snapshot()
	assert.Equal(t, models.StatusCompleted, list[0].Status)
	assert.Equal(t, models.StatusPending, list[1].Status)
	assert.Empty(t, list[1].Error)
}

func TestCancel_DiscardsLateResult(t *testing.T) {
	store := newStore(t, "A", "B")
	entered := make(chan struct{})
	release := make(chan struct{})
	gen := &scriptedGenerator{hook: func(context.Context, generator.SectionRequest) error {
		close(entered)
		<-release
		return nil
	}}
	p := newPipeline(store, gen, 0)

	require.True(t, p.Start(context.Background()))
	<-entered
	p.Cancel()
	close(release)

	assert.ErrorIs(t, p.Wait(), ErrCancelled)
	for _, s := range store.Snapshot() {
		assert.Equal(t, models.StatusPending, s.Status)
		assert.Empty(t, s.Content)
	}
	assert.Equal(t, []string{"A"}, gen.titles())
}

func TestCancel_AfterResetIgnoresMissingSection(t *testing.T) {
	store := newStore(t, "A")
	entered := make(chan struct{})
	release := make(chan struct{})
	gen := &scriptedGenerator{hook: func(context.Context, generator.SectionRequest) error {
		close(entered)
		<-release
		return nil
	}}
	p := newPipeline(store, gen, 0)

	require.True(t, p.Start(context.Background()))
	<-entered
	p.Cancel()
	store.Reset()
	close(release)

	assert.ErrorIs(t, p.Wait(), ErrCancelled)
	assert.Equal(t, 0, store.Len())
}

func TestBuildRequest_FirstSection(t *testing.T) {
	list := []models.Section{
		{ID: "1", Title: "Intro", Status: models.StatusInProgress},
		{ID: "2", Title: "Body", Status: models.StatusPending},
	}
	req := BuildRequest(list[0], list, models.DefaultPaperConfig(), DefaultContextWindow)

	assert.Equal(t, FirstSectionContext, req.PreviousContext)
	assert.Equal(t, []string{"Intro", "Body"}, req.Roadmap)
	assert.Equal(t, "- Intro\n- Body", req.RoadmapText())
	assert.Equal(t, "Intro", req.Section.Title)
}

func TestBuildRequest_RoadmapIncludesEveryStatus(t *testing.T) {
	list := []models.Section{
		{ID: "1", Title: "A", Status: models.StatusCompleted, Content: "a"},
		{ID: "2", Title: "B", Status: models.StatusFailed},
		{ID: "3", Title: "C", Status: models.StatusInProgress},
		{ID: "4", Title: "D", Status: models.StatusPending},
	}
	req := BuildRequest(list[2], list, models.PaperConfig{}, 10)
	assert.Equal(t, []string{"A", "B", "C", "D"}, req.Roadmap)
	assert.Equal(t, "a", req.PreviousContext)
}

func TestBuildRequest_UsesLastCompletedInList(t *testing.T) {
	list := []models.Section{
		{ID: "1", Title: "Intro", Status: models.StatusInProgress},
		{ID: "2", Title: "Method", Status: models.StatusCompleted, Content: "method text"},
		{ID: "3", Title: "Results", Status: models.StatusCompleted, Content: "results text"},
		{ID: "4", Title: "Outlook", Status: models.StatusFailed},
	}
	req := BuildRequest(list[0], list, models.PaperConfig{}, DefaultContextWindow)
	assert.Equal(t, "results text", req.PreviousContext)
}

func TestBuildRequest_TruncatesLongContext(t *testing.T) {
	long := strings.Repeat("x", 40) + "TAIL"
	list := []models.Section{
		{ID: "1", Title: "A", Status: models.StatusCompleted, Content: long},
		{ID: "2", Title: "B", Status: models.StatusInProgress},
	}

	req := BuildRequest(list[1], list, models.PaperConfig{}, 10)
	assert.Equal(t, "...(truncated)..."+"xxxxxxTAIL", req.PreviousContext)

	req = BuildRequest(list[1], list, models.PaperConfig{}, len(long))
	assert.Equal(t, long, req.PreviousContext)
}

func TestEndToEnd_AssembledDocument(t *testing.T) {
	store := newStore(t, "Intro", "Method")
	gen := &scriptedGenerator{replies: map[string]string{"Intro": "BODY:Intro", "Method": "BODY:Method"}}
	require.NoError(t, newPipeline(store, gen, 0).Run(context.Background()))

	list := store.Snapshot()
	assert.Equal(t, "BODY:Intro", list[0].Content)
	assert.Equal(t, "BODY:Method", list[1].Content)
	assert.True(t, store.AllCompleted())

	doc := document.Assemble("T", list)
	assert.Less(t, strings.Index(doc, "BODY:Intro"), strings.Index(doc, "BODY:Method"))
}

func TestEndToEnd_MixedOutcome(t *testing.T) {
	store := newStore(t, "Intro", "Method")
	gen := &scriptedGenerator{
		replies:  map[string]string{"Intro": "BODY:Intro"},
		failures: map[string]error{"Method": errors.New("quota exceeded")},
	}
	require.NoError(t, newPipeline(store, gen, 0).Run(context.Background()))

	list := store.Snapshot()
	assert.Equal(t, models.StatusCompleted, list[0].Status)
	assert.Equal(t, models.StatusFailed, list[1].Status)
	assert.Empty(t, list[1].Content)

	doc := document.Assemble("T", list)
	assert.Contains(t, doc, "BODY:Intro")
	assert.NotContains(t, doc, "BODY:Method")
}
