// Package pipeline drafts pending sections one at a time, in list order.
//
// Each step selects the first pending section, marks it in_progress, hands the
// generator a request built from the current list, and records the outcome.
// A failed section is recorded and skipped; the loop continues with the next
// pending one and ends when none remain.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lamim/paperforge/internal/generator"
	"github.com/lamim/paperforge/internal/sections"
	"github.com/lamim/paperforge/internal/util"
	"github.com/lamim/paperforge/pkg/models"
)

const (
	// DefaultContextWindow is the number of trailing characters of the previous section sent as context
	DefaultContextWindow = 3000
	// FirstSectionContext stands in for the previous section when none is completed
	FirstSectionContext = "This is the first section."
)

var (
	// ErrBusy is returned when a step or run is already in flight
	ErrBusy = errors.New("pipeline is busy")
	// ErrCancelled is returned when the pipeline was torn down mid-step
	ErrCancelled = errors.New("pipeline cancelled")
)

// State is the pipeline's run state
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Observer is notified around each step
type Observer interface {
	SectionStarted(section models.Section)
	// SectionFinished receives the section as recorded: completed, failed, or
	// pending again when the step was interrupted
	SectionFinished(section models.Section, duration time.Duration, err error)
}

// Options configures a Pipeline
type Options struct {
	Paper              models.PaperConfig
	ContextWindowChars int
	Logger             *slog.Logger
	Observers          []Observer
}

// Pipeline drives sequential section generation for one session
type Pipeline struct {
	store     *sections.Store
	gen       generator.ContentGenerator
	paper     models.PaperConfig
	window    int
	logger    *slog.Logger
	observers []Observer

	mu        sync.Mutex
	state     State
	stepping  bool
	epoch     uint64
	cancelRun context.CancelFunc
	done      chan struct{}
	lastErr   error
}

// New creates an idle pipeline over store
func New(store *sections.Store, gen generator.ContentGenerator, opts Options) *Pipeline {
	if opts.ContextWindowChars <= 0 {
		opts.ContextWindowChars = DefaultContextWindow
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Pipeline{
		store:     store,
		gen:       gen,
		paper:     opts.Paper,
		window:    opts.ContextWindowChars,
		logger:    opts.Logger,
		observers: opts.Observers,
	}
}

// AddObserver registers an observer; call before Run or Start
func (p *Pipeline) AddObserver(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// State returns the current run state
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Advance performs one step. It returns false with a nil error when no section is
// pending. A call while another step is in flight returns ErrBusy and does nothing.
// A generation failure is recorded on the section and is not returned.
func (p *Pipeline) Advance(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.stepping {
		p.mu.Unlock()
		return false, ErrBusy
	}
	p.stepping = true
	epoch := p.epoch
	observers := p.observers
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.stepping = false
		p.mu.Unlock()
	}()

	return p.step(ctx, epoch, observers)
}

func (p *Pipeline) step(ctx context.Context, epoch uint64, observers []Observer) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	target, snapshot, ok, err := p.store.BeginNext()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	for _, o := range observers {
		o.SectionStarted(target)
	}
	p.logger.Info("Drafting section",
		"section_id", target.ID,
		"title", target.Title,
		"position", indexOf(snapshot, target.ID)+1,
		"total", len(snapshot))

	req := BuildRequest(target, snapshot, p.paper, p.window)
	start := time.Now()
	content, genErr := p.gen.GenerateSection(ctx, req)
	duration := time.Since(start)

	// A result arriving after teardown must not touch the list
	if p.stale(epoch) {
		_ = p.store.Revert(target.ID)
		p.logger.Debug("Discarding result of cancelled step", "section_id", target.ID)
		p.finish(observers, target.ID, duration, ErrCancelled)
		return false, ErrCancelled
	}

	// Interruption is not a failure; the section is drafted again next time
	if genErr != nil && ctx.Err() != nil {
		if err := p.store.Revert(target.ID); err != nil {
			return false, err
		}
		p.logger.Warn("Section interrupted", "section_id", target.ID, "title", target.Title, "error", ctx.Err())
		p.finish(observers, target.ID, duration, ctx.Err())
		return false, ctx.Err()
	}

	if genErr == nil {
		content = util.CleanLatex(content)
		if content == "" {
			genErr = generator.ErrEmptySection
		}
	}

	if genErr != nil {
		if err := p.store.Fail(target.ID, genErr.Error()); err != nil {
			return false, err
		}
		p.logger.Warn("Section failed",
			"section_id", target.ID,
			"title", target.Title,
			"duration", duration.Round(time.Millisecond),
			"error", genErr)
		p.finish(observers, target.ID, duration, genErr)
		return true, nil
	}

	if err := p.store.Complete(target.ID, content); err != nil {
		return false, err
	}
	p.logger.Info("Section completed",
		"section_id", target.ID,
		"title", target.Title,
		"chars", len([]rune(content)),
		"duration", duration.Round(time.Millisecond))
	p.finish(observers, target.ID, duration, nil)
	return true, nil
}

func (p *Pipeline) finish(observers []Observer, id string, duration time.Duration, err error) {
	if len(observers) == 0 {
		return
	}
	section, getErr := p.store.Get(id)
	if getErr != nil {
		return
	}
	for _, o := range observers {
		o.SectionFinished(section, duration, err)
	}
}

// Run steps until no section is pending. A Run while another is active returns
// ErrBusy without doing anything. Per-section failures do not stop the loop.
func (p *Pipeline) Run(ctx context.Context) error {
	runCtx, epoch, ok := p.begin(ctx)
	if !ok {
		return ErrBusy
	}

	err := p.loop(runCtx, epoch)
	p.end(err)
	return err
}

// Start runs the loop on a goroutine and returns false if a run is already active
func (p *Pipeline) Start(ctx context.Context) bool {
	runCtx, epoch, ok := p.begin(ctx)
	if !ok {
		return false
	}

	go func() {
		p.end(p.loop(runCtx, epoch))
	}()
	return true
}

// Wait blocks until the active run ends and returns its error
func (p *Pipeline) Wait() error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done != nil {
		<-done
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Cancel tears the pipeline down: the active run stops, and a result that
// arrives for the in-flight step is discarded.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.epoch++
	if p.cancelRun != nil {
		p.cancelRun()
	}
}

func (p *Pipeline) begin(ctx context.Context) (context.Context, uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Running {
		return nil, 0, false
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.state = Running
	p.cancelRun = cancel
	p.done = make(chan struct{})
	p.lastErr = nil
	return runCtx, p.epoch, true
}

func (p *Pipeline) end(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelRun()
	p.cancelRun = nil
	p.state = Idle
	p.lastErr = err
	close(p.done)
}

func (p *Pipeline) loop(ctx context.Context, epoch uint64) error {
	for {
		if p.stale(epoch) {
			return ErrCancelled
		}

		progressed, err := p.Advance(ctx)
		if err != nil {
			return err
		}
		if !progressed {
			counts := p.store.Counts()
			p.logger.Info("Generation idle",
				"completed", counts[models.StatusCompleted],
				"failed", counts[models.StatusFailed])
			return nil
		}
	}
}

func (p *Pipeline) stale(epoch uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.epoch != epoch
}

// BuildRequest assembles the generator input for target from a list snapshot.
// The roadmap lists every title in order regardless of status. The previous
// context is the trailing window of the last completed section in the list, or
// FirstSectionContext when none has completed. A retried section therefore sees
// the latest completed text even when that section comes after it.
func BuildRequest(target models.Section, snapshot []models.Section, paper models.PaperConfig, windowChars int) generator.SectionRequest {
	roadmap := make([]string, len(snapshot))
	for i, s := range snapshot {
		roadmap[i] = s.Title
	}

	previous := FirstSectionContext
	for i := len(snapshot) - 1; i >= 0; i-- {
		if snapshot[i].Status == models.StatusCompleted && snapshot[i].ID != target.ID {
			previous, _ = util.TrailingWindow(snapshot[i].Content, windowChars)
			break
		}
	}

	return generator.SectionRequest{
		Section:         target,
		Roadmap:         roadmap,
		PreviousContext: previous,
		Paper:           paper,
	}
}

func indexOf(list []models.Section, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
