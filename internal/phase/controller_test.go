package phase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lamim/paperforge/internal/generator"
	"github.com/lamim/paperforge/internal/pipeline"
	"github.com/lamim/paperforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	outline    []models.OutlineItem
	outlineErr error
	failTitles map[string]bool
	block      chan struct{}
}

func (s *stubGenerator) GenerateOutline(context.Context, models.PaperConfig) ([]models.OutlineItem, error) {
	return s.outline, s.outlineErr
}

func (s *stubGenerator) GenerateSection(_ context.Context, req generator.SectionRequest) (string, error) {
	if s.block != nil {
		<-s.block
	}
	if s.failTitles[req.Section.Title] {
		return "", errors.New("upstream error")
	}
	return "BODY:" + req.Section.Title, nil
}

func testPaper() models.PaperConfig {
	cfg := models.DefaultPaperConfig()
	cfg.Title = "On Expanders"
	cfg.RawSketch = "spectral gap implies mixing"
	return cfg
}

func newController(t *testing.T, gen *stubGenerator) *Controller {
	t.Helper()
	c := NewController(gen, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, c.SetConfig(testPaper()))
	return c
}

func twoSections() []models.OutlineItem {
	return []models.OutlineItem{
		{Title: "Intro", Description: "Motivation"},
		{Title: "Method", Description: "The argument"},
	}
}

func TestController_HappyPath(t *testing.T) {
	c := newController(t, &stubGenerator{outline: twoSections()})
	assert.Equal(t, models.PhaseInput, c.Phase())

	require.NoError(t, c.CreateOutline(context.Background()))
	assert.Equal(t, models.PhaseOutline, c.Phase())
	require.Len(t, c.Sections(), 2)

	p, err := c.StartGeneration()
	require.NoError(t, err)
	assert.Equal(t, models.PhaseGenerating, c.Phase())
	assert.Same(t, p, c.Pipeline())

	require.NoError(t, p.Run(context.Background()))
	assert.True(t, c.ReadyToFinalize())

	doc, err := c.Finalize()
	require.NoError(t, err)
	assert.Equal(t, models.PhaseFinished, c.Phase())
	assert.Contains(t, doc, "\\title{On Expanders}")
	assert.Contains(t, doc, "BODY:Intro")

	again, err := c.Document()
	require.NoError(t, err)
	assert.Equal(t, doc, again)

	stats := c.Snapshot().Stats
	assert.Equal(t, 2, stats.Completed)
	assert.False(t, stats.EndTime.IsZero())
}

func TestController_OutlineFailureStaysInInput(t *testing.T) {
	c := newController(t, &stubGenerator{outlineErr: generator.ErrMalformedOutline})

	err := c.CreateOutline(context.Background())
	assert.ErrorIs(t, err, ErrOutlineFailed)
	assert.ErrorIs(t, err, generator.ErrMalformedOutline)
	assert.Equal(t, models.PhaseInput, c.Phase())
	assert.Empty(t, c.Sections())
}

func TestController_SetConfigRules(t *testing.T) {
	c := NewController(&stubGenerator{}, Options{})
	assert.Error(t, c.SetConfig(models.PaperConfig{Title: "x"}))

	bad := testPaper()
	bad.Tone = "Shouty"
	assert.Error(t, c.SetConfig(bad))

	require.NoError(t, c.SetConfig(testPaper()))
	require.NoError(t, c.UseOutline(twoSections()))
	assert.ErrorIs(t, c.SetConfig(testPaper()), ErrWrongPhase)
}

func TestController_OutlineEditing(t *testing.T) {
	c := newController(t, &stubGenerator{})
	require.NoError(t, c.UseOutline(twoSections()))

	added, err := c.AddSection("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSectionTitle, added.Title)
	assert.Equal(t, DefaultSectionDescription, added.Description)
	assert.Equal(t, models.StatusPending, added.Status)

	list := c.Sections()
	require.NoError(t, c.UpdateSection(list[0].ID, "Introduction", "Why it matters"))
	require.NoError(t, c.MoveSection(added.ID, 0))
	require.NoError(t, c.DeleteSection(list[1].ID))

	got := c.Sections()
	require.Len(t, got, 2)
	assert.Equal(t, added.ID, got[0].ID)
	assert.Equal(t, "Introduction", got[1].Title)
}

func TestController_BackKeepsOutline(t *testing.T) {
	c := newController(t, &stubGenerator{})
	require.NoError(t, c.UseOutline(twoSections()))
	require.NoError(t, c.Back())
	assert.Equal(t, models.PhaseInput, c.Phase())
	assert.Len(t, c.Sections(), 2)
	assert.ErrorIs(t, c.Back(), ErrWrongPhase)
}

func TestController_UseOutlineValidates(t *testing.T) {
	c := newController(t, &stubGenerator{})
	assert.ErrorIs(t, c.UseOutline(nil), ErrNoSections)
	assert.Error(t, c.UseOutline([]models.OutlineItem{{Title: "A"}}))
	assert.Equal(t, models.PhaseInput, c.Phase())
}

func TestController_StartGenerationRequiresSections(t *testing.T) {
	c := newController(t, &stubGenerator{})
	_, err := c.StartGeneration()
	assert.ErrorIs(t, err, ErrWrongPhase)

	require.NoError(t, c.UseOutline(twoSections()))
	for _, s := range c.Sections() {
		require.NoError(t, c.DeleteSection(s.ID))
	}
	_, err = c.StartGeneration()
	assert.ErrorIs(t, err, ErrNoSections)
	assert.Equal(t, models.PhaseOutline, c.Phase())
}

func TestController_EditsRejectedDuringGeneration(t *testing.T) {
	c := newController(t, &stubGenerator{})
	require.NoError(t, c.UseOutline(twoSections()))
	_, err := c.StartGeneration()
	require.NoError(t, err)

	id := c.Sections()[0].ID
	assert.ErrorIs(t, c.UpdateSection(id, "x", "y"), ErrWrongPhase)
	assert.ErrorIs(t, c.DeleteSection(id), ErrWrongPhase)
	assert.ErrorIs(t, c.MoveSection(id, 1), ErrWrongPhase)

	added, err := c.AddSection("Appendix", "Proof details")
	require.NoError(t, err)
	assert.Equal(t, "Appendix", added.Title)
}

func TestController_FailedSectionBlocksFinalize(t *testing.T) {
	gen := &stubGenerator{failTitles: map[string]bool{"Method": true}}
	c := newController(t, gen)
	require.NoError(t, c.UseOutline(twoSections()))
	p, err := c.StartGeneration()
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	assert.False(t, c.ReadyToFinalize())
	_, err = c.Finalize()
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, models.PhaseGenerating, c.Phase())

	partial := c.PartialDocument()
	assert.Contains(t, partial, "BODY:Intro")
	assert.NotContains(t, partial, "BODY:Method")

	gen.failTitles = nil
	n, err := c.RetryFailed()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, p.Run(context.Background()))

	_, err = c.Finalize()
	require.NoError(t, err)
}

func TestController_RetrySection(t *testing.T) {
	gen := &stubGenerator{failTitles: map[string]bool{"Intro": true}}
	c := newController(t, gen)
	require.NoError(t, c.UseOutline(twoSections()))
	assert.ErrorIs(t, c.RetrySection("x"), ErrWrongPhase)

	p, err := c.StartGeneration()
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	list := c.Sections()
	assert.Error(t, c.RetrySection(list[1].ID))
	require.NoError(t, c.RetrySection(list[0].ID))
	assert.Equal(t, models.StatusPending, c.Sections()[0].Status)
}

func TestController_RestartDiscardsInFlightResult(t *testing.T) {
	gen := &stubGenerator{block: make(chan struct{})}
	c := newController(t, gen)
	require.NoError(t, c.UseOutline(twoSections()))
	p, err := c.StartGeneration()
	require.NoError(t, err)
	require.True(t, p.Start(context.Background()))

	require.Eventually(t, func() bool {
		return c.Counts()[models.StatusInProgress] == 1
	}, time.Second, 5*time.Millisecond)

	c.Restart()
	close(gen.block)
	assert.ErrorIs(t, p.Wait(), pipeline.ErrCancelled)

	assert.Equal(t, models.PhaseInput, c.Phase())
	assert.Empty(t, c.Sections())
	assert.Nil(t, c.Pipeline())
	assert.Equal(t, models.DefaultPaperConfig(), c.Paper())
}

func TestController_SnapshotRestore(t *testing.T) {
	gen := &stubGenerator{}
	c := newController(t, gen)
	require.NoError(t, c.UseOutline(twoSections()))
	p, err := c.StartGeneration()
	require.NoError(t, err)
	_, err = p.Advance(context.Background())
	require.NoError(t, err)

	saved := c.Snapshot()
	assert.Equal(t, models.PhaseGenerating, saved.Phase)
	assert.NotEmpty(t, saved.SessionID)
	// Simulate a crash mid-step
	saved.Sections[1].Status = models.StatusInProgress

	restored := NewController(gen, Options{})
	require.NoError(t, restored.Restore(saved))
	assert.Equal(t, saved.SessionID, restored.Snapshot().SessionID)
	assert.Equal(t, models.StatusPending, restored.Sections()[1].Status)
	require.NotNil(t, restored.Pipeline())
	assert.ErrorIs(t, restored.UpdateSection(saved.Sections[1].ID, "x", "y"), ErrWrongPhase)

	require.NoError(t, restored.Pipeline().Run(context.Background()))
	doc, err := restored.Finalize()
	require.NoError(t, err)
	assert.Contains(t, doc, "BODY:Method")
}

func TestController_RestoreRejectsUnknownPhase(t *testing.T) {
	c := NewController(&stubGenerator{}, Options{})
	assert.Error(t, c.Restore(models.Session{Phase: "drafting"}))
	assert.Equal(t, models.PhaseInput, c.Phase())
}

type countingObserver struct{ finished int }

func (o *countingObserver) SectionStarted(models.Section) {}
func (o *countingObserver) SectionFinished(models.Section, time.Duration, error) {
	o.finished++
}

func TestController_ObserversAttachToPipeline(t *testing.T) {
	obs := &countingObserver{}
	c := newController(t, &stubGenerator{})
	c.AddObserver(obs)
	require.NoError(t, c.UseOutline(twoSections()))
	p, err := c.StartGeneration()
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 2, obs.finished)
}
