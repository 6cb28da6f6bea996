// Package phase drives a drafting session through Input, Outline, Generating
// and Finished, and owns the paper config and section list for that session.
package phase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lamim/paperforge/internal/document"
	"github.com/lamim/paperforge/internal/generator"
	"github.com/lamim/paperforge/internal/pipeline"
	"github.com/lamim/paperforge/internal/sections"
	"github.com/lamim/paperforge/pkg/models"
)

const (
	// DefaultSectionTitle is used when a section is added without a title
	DefaultSectionTitle = "New Section"
	// DefaultSectionDescription is used when a section is added without a description
	DefaultSectionDescription = "Describe what goes here..."
)

var (
	// ErrWrongPhase is returned when an operation is not allowed in the current phase
	ErrWrongPhase = errors.New("operation not allowed in current phase")
	// ErrOutlineFailed is returned when outline generation fails or returns garbage
	ErrOutlineFailed = errors.New("failed to generate outline, try again or check your API credentials")
	// ErrNoSections is returned when generation is started on an empty outline
	ErrNoSections = errors.New("outline has no sections")
	// ErrNotReady is returned when finalizing before every section is completed
	ErrNotReady = errors.New("not every section is completed")
)

// Options configures a Controller
type Options struct {
	ContextWindowChars int
	Logger             *slog.Logger
	// Observers are attached to every pipeline the controller creates
	Observers []pipeline.Observer
}

// Controller is the top-level state machine of one session
type Controller struct {
	gen    generator.ContentGenerator
	store  *sections.Store
	window int
	logger *slog.Logger

	mu        sync.Mutex
	observers []pipeline.Observer
	phase     models.Phase
	paper     models.PaperConfig
	active    *pipeline.Pipeline
	sessionID string
	createdAt time.Time
	stats     models.SessionStats
}

// NewController creates a controller in the Input phase with default paper settings
func NewController(gen generator.ContentGenerator, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		gen:       gen,
		store:     sections.NewStore(),
		window:    opts.ContextWindowChars,
		logger:    opts.Logger,
		observers: opts.Observers,
		phase:     models.PhaseInput,
		paper:     models.DefaultPaperConfig(),
		sessionID: uuid.NewString(),
		createdAt: time.Now(),
	}
}

// AddObserver attaches o to the active pipeline and to every later one
func (c *Controller) AddObserver(o pipeline.Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
	if c.active != nil {
		c.active.AddObserver(o)
	}
}

// Phase returns the current phase
func (c *Controller) Phase() models.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Paper returns the paper config
func (c *Controller) Paper() models.PaperConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paper
}

// Sections returns a copy of the section list
func (c *Controller) Sections() []models.Section {
	return c.store.Snapshot()
}

// Counts returns the number of sections per status
func (c *Controller) Counts() sections.StatusCounts {
	return c.store.Counts()
}

// Pipeline returns the pipeline of the Generating phase, or nil
func (c *Controller) Pipeline() *pipeline.Pipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// SetConfig sets the paper config. Input phase only.
func (c *Controller) SetConfig(cfg models.PaperConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid paper config: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("set config", models.PhaseInput); err != nil {
		return err
	}
	c.paper = cfg
	return nil
}

// CreateOutline asks the generator for an outline and moves to the Outline phase.
// On failure the phase stays Input and the returned error wraps ErrOutlineFailed.
func (c *Controller) CreateOutline(ctx context.Context) error {
	c.mu.Lock()
	if err := c.require("create outline", models.PhaseInput); err != nil {
		c.mu.Unlock()
		return err
	}
	paper := c.paper
	c.mu.Unlock()

	if err := paper.Validate(); err != nil {
		return fmt.Errorf("invalid paper config: %w", err)
	}

	c.logger.Info("Generating outline", "title", paper.Title, "target_length", paper.TargetLength)
	start := time.Now()
	items, err := c.gen.GenerateOutline(ctx, paper)
	if err != nil {
		c.logger.Error("Outline generation failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("%w: %w", ErrOutlineFailed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A restart while the request was outstanding wins
	if c.phase != models.PhaseInput {
		return fmt.Errorf("%w: phase changed to %s while generating the outline", ErrWrongPhase, c.phase)
	}
	if err := c.store.Replace(items); err != nil {
		return err
	}
	c.phase = models.PhaseOutline
	c.logger.Info("Outline ready", "sections", len(items), "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// UseOutline installs a user-supplied outline and moves to the Outline phase
func (c *Controller) UseOutline(items []models.OutlineItem) error {
	if len(items) == 0 {
		return ErrNoSections
	}
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("outline item %d: %w", i+1, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("use outline", models.PhaseInput, models.PhaseOutline); err != nil {
		return err
	}
	if err := c.paper.Validate(); err != nil {
		return fmt.Errorf("invalid paper config: %w", err)
	}
	if err := c.store.Replace(items); err != nil {
		return err
	}
	c.phase = models.PhaseOutline
	return nil
}

// AddSection appends a pending section. Empty fields get placeholder text.
// Allowed while reviewing the outline and during generation.
func (c *Controller) AddSection(title, description string) (models.Section, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("add section", models.PhaseOutline, models.PhaseGenerating); err != nil {
		return models.Section{}, err
	}

	if strings.TrimSpace(title) == "" {
		title = DefaultSectionTitle
	}
	if strings.TrimSpace(description) == "" {
		description = DefaultSectionDescription
	}
	return c.store.Add(title, description), nil
}

// UpdateSection edits a pending section. Outline phase only.
func (c *Controller) UpdateSection(id, title, description string) error {
	if err := c.editing("update section"); err != nil {
		return err
	}
	return c.store.Update(id, title, description)
}

// DeleteSection removes a section. Outline phase only.
func (c *Controller) DeleteSection(id string) error {
	if err := c.editing("delete section"); err != nil {
		return err
	}
	return c.store.Delete(id)
}

// MoveSection moves a section to newIndex. Outline phase only.
func (c *Controller) MoveSection(id string, newIndex int) error {
	if err := c.editing("move section"); err != nil {
		return err
	}
	return c.store.Move(id, newIndex)
}

// Back returns from the outline to the input form; the outline is kept until replaced
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("back", models.PhaseOutline); err != nil {
		return err
	}
	c.phase = models.PhaseInput
	return nil
}

// StartGeneration freezes the outline, moves to Generating and returns the
// pipeline bound to this session. The caller runs it.
func (c *Controller) StartGeneration() (*pipeline.Pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("start generation", models.PhaseOutline); err != nil {
		return nil, err
	}
	if c.store.Len() == 0 {
		return nil, ErrNoSections
	}

	c.store.Freeze()
	c.phase = models.PhaseGenerating
	c.stats.StartTime = time.Now()
	c.active = c.newPipelineLocked()
	c.logger.Info("Generation started", "sections", c.store.Len())
	return c.active, nil
}

// RetrySection returns a failed section to pending. Generating phase only.
func (c *Controller) RetrySection(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("retry section", models.PhaseGenerating); err != nil {
		return err
	}
	return c.store.Retry(id)
}

// RetryFailed returns every failed section to pending. Generating phase only.
func (c *Controller) RetryFailed() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("retry failed sections", models.PhaseGenerating); err != nil {
		return 0, err
	}
	return c.store.RetryFailed(), nil
}

// ReadyToFinalize reports whether generation is over and every section is completed
func (c *Controller) ReadyToFinalize() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyLocked()
}

func (c *Controller) readyLocked() bool {
	if c.phase != models.PhaseGenerating || !c.store.AllCompleted() {
		return false
	}
	return c.active == nil || c.active.State() == pipeline.Idle
}

// Finalize moves to Finished and returns the assembled document.
// It returns ErrNotReady unless every section is completed.
func (c *Controller) Finalize() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("finalize", models.PhaseGenerating); err != nil {
		return "", err
	}
	if !c.readyLocked() {
		counts := c.store.Counts()
		return "", fmt.Errorf("%w: %d of %d completed, %d failed",
			ErrNotReady, counts[models.StatusCompleted], counts.Total(), counts[models.StatusFailed])
	}

	c.phase = models.PhaseFinished
	c.stats.EndTime = time.Now()
	c.logger.Info("Paper finalized", "sections", c.store.Len(), "elapsed", c.stats.EndTime.Sub(c.stats.StartTime).Round(time.Second))
	return document.Assemble(c.paper.Title, c.store.Snapshot()), nil
}

// Document returns the assembled document. Finished phase only.
func (c *Controller) Document() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require("document", models.PhaseFinished); err != nil {
		return "", err
	}
	return document.Assemble(c.paper.Title, c.store.Snapshot()), nil
}

// PartialDocument assembles whatever has been drafted so far, in any phase
func (c *Controller) PartialDocument() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return document.Assemble(c.paper.Title, c.store.Snapshot())
}

// Restart discards the session's work and returns to Input with default settings.
// A result still in flight is dropped.
func (c *Controller) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.active.Cancel()
		c.active = nil
	}
	c.store.Reset()
	c.paper = models.DefaultPaperConfig()
	c.phase = models.PhaseInput
	c.stats = models.SessionStats{}
	c.logger.Info("Session restarted")
}

// SectionStarted implements pipeline.Observer
func (c *Controller) SectionStarted(models.Section) {}

// SectionFinished implements pipeline.Observer and keeps the timing stats
func (c *Controller) SectionFinished(section models.Section, duration time.Duration, _ error) {
	if section.Status != models.StatusCompleted && section.Status != models.StatusFailed {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.TotalDuration += duration
	resolved := c.stats.Completed + c.stats.Failed + 1
	if section.Status == models.StatusCompleted {
		c.stats.Completed++
	} else {
		c.stats.Failed++
	}
	c.stats.AverageDuration = c.stats.TotalDuration / time.Duration(resolved)
}

// Snapshot returns the persistable state of the session
func (c *Controller) Snapshot() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.Session{
		SessionID: c.sessionID,
		CreatedAt: c.createdAt,
		Phase:     c.phase,
		Config:    c.paper,
		Sections:  c.store.Snapshot(),
		Stats:     c.stats,
	}
}

// Restore loads a saved session. A session saved mid-generation comes back in the
// Generating phase with a fresh idle pipeline; interrupted sections are pending again.
func (c *Controller) Restore(s models.Session) error {
	frozen := false
	switch s.Phase {
	case models.PhaseInput, models.PhaseOutline:
	case models.PhaseGenerating, models.PhaseFinished:
		frozen = true
	default:
		return fmt.Errorf("session has unknown phase %q", s.Phase)
	}
	if s.Phase != models.PhaseInput {
		if err := s.Config.Validate(); err != nil {
			return fmt.Errorf("invalid paper config in session: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.active.Cancel()
		c.active = nil
	}
	if err := c.store.Restore(s.Sections, frozen); err != nil {
		return err
	}
	c.phase = s.Phase
	c.paper = s.Config
	c.stats = s.Stats
	if s.SessionID != "" {
		c.sessionID = s.SessionID
	}
	if !s.CreatedAt.IsZero() {
		c.createdAt = s.CreatedAt
	}
	if c.phase == models.PhaseGenerating {
		c.active = c.newPipelineLocked()
	}
	return nil
}

func (c *Controller) newPipelineLocked() *pipeline.Pipeline {
	observers := append([]pipeline.Observer{c}, c.observers...)
	return pipeline.New(c.store, c.gen, pipeline.Options{
		Paper:              c.paper,
		ContextWindowChars: c.window,
		Logger:             c.logger,
		Observers:          observers,
	})
}

func (c *Controller) editing(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.require(op, models.PhaseOutline)
}

func (c *Controller) require(op string, allowed ...models.Phase) error {
	for _, p := range allowed {
		if c.phase == p {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s in phase %s", ErrWrongPhase, op, c.phase)
}
