// Package generator turns paper parameters and section requests into model calls.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lamim/paperforge/internal/api"
	"github.com/lamim/paperforge/internal/config"
	"github.com/lamim/paperforge/internal/util"
	"github.com/lamim/paperforge/pkg/models"
)

var (
	// ErrMalformedOutline is returned when the outline response cannot be used
	ErrMalformedOutline = errors.New("malformed outline response")
	// ErrEmptySection is returned when a section response is empty after cleaning
	ErrEmptySection = errors.New("model returned an empty section")
)

// ContentGenerator produces outlines and section bodies
type ContentGenerator interface {
	GenerateOutline(ctx context.Context, paper models.PaperConfig) ([]models.OutlineItem, error)
	GenerateSection(ctx context.Context, req SectionRequest) (string, error)
}

// SectionRequest is everything the model sees when drafting one section
type SectionRequest struct {
	Section         models.Section
	Roadmap         []string // Every section title in list order
	PreviousContext string   // Tail of the last completed section, or the first-section sentinel
	Paper           models.PaperConfig
}

// RoadmapText renders the roadmap as one "- title" line per section
func (r SectionRequest) RoadmapText() string {
	lines := make([]string, len(r.Roadmap))
	for i, title := range r.Roadmap {
		lines[i] = "- " + title
	}
	return strings.Join(lines, "\n")
}

type outlineData struct {
	Title        string
	Tone         string
	Template     string
	TargetLength string
	Sketch       string
}

type sectionData struct {
	Title              string
	Tone               string
	Template           string
	TargetLength       string
	Roadmap            string
	SectionTitle       string
	SectionDescription string
	PreviousContext    string
}

// With JSON mode on the model must return an object, so the array is wrapped
const jsonModeOutlineSuffix = `

Your reply must be a JSON object of the form {"sections": [{"title": "...", "description": "..."}, ...]}.`

// Options configures an LLMGenerator
type Options struct {
	Outline         Completer
	Section         Completer
	Templates       config.PromptTemplates
	OutlineJSONMode bool
	Logger          *slog.Logger
}

// LLMGenerator renders prompt templates and sends them through Completers
type LLMGenerator struct {
	outline         Completer
	section         Completer
	templates       config.PromptTemplates
	outlineJSONMode bool
	logger          *slog.Logger
}

// NewLLMGenerator creates a generator from explicit completers
func NewLLMGenerator(opts Options) *LLMGenerator {
	if opts.Templates.OutlineGeneration == "" {
		opts.Templates.OutlineGeneration = config.GetDefaultOutlineTemplate()
	}
	if opts.Templates.SectionGeneration == "" {
		opts.Templates.SectionGeneration = config.GetDefaultSectionTemplate()
	}
	if opts.Templates.OutlineSystemPrompt == "" {
		opts.Templates.OutlineSystemPrompt = config.GetDefaultOutlineSystemPrompt()
	}
	if opts.Templates.SectionSystemPrompt == "" {
		opts.Templates.SectionSystemPrompt = config.GetDefaultSectionSystemPrompt()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &LLMGenerator{
		outline:         opts.Outline,
		section:         opts.Section,
		templates:       opts.Templates,
		outlineJSONMode: opts.OutlineJSONMode,
		logger:          opts.Logger,
	}
}

// New builds the generator selected by the model configuration
func New(cfg *config.Config, secrets *config.Secrets, client *api.Client, logger *slog.Logger) (ContentGenerator, error) {
	mainModel := cfg.MainModel()
	outlineModel := cfg.OutlineModel()

	if mainModel.Provider == config.ProviderEcho {
		logger.Info("Using offline echo generator")
		return NewEchoGenerator(0), nil
	}

	section, err := NewCompleter(mainModel, secrets, client)
	if err != nil {
		return nil, fmt.Errorf("section model: %w", err)
	}
	outline, err := NewCompleter(outlineModel, secrets, client)
	if err != nil {
		return nil, fmt.Errorf("outline model: %w", err)
	}

	return NewLLMGenerator(Options{
		Outline:         outline,
		Section:         section,
		Templates:       cfg.PromptTemplates,
		OutlineJSONMode: outlineModel.UseJSONMode,
		Logger:          logger,
	}), nil
}

// GenerateOutline asks the model to split the sketch into sections
func (g *LLMGenerator) GenerateOutline(ctx context.Context, paper models.PaperConfig) ([]models.OutlineItem, error) {
	prompt, err := util.RenderTemplate(g.templates.OutlineGeneration, outlineData{
		Title:        paper.Title,
		Tone:         string(paper.Tone),
		Template:     string(paper.Template),
		TargetLength: string(paper.TargetLength),
		Sketch:       paper.RawSketch,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render outline template: %w", err)
	}
	if g.outlineJSONMode {
		prompt += jsonModeOutlineSuffix
	}

	start := time.Now()
	raw, err := g.outline.Complete(ctx, messages(g.templates.OutlineSystemPrompt, prompt), CompletionOptions{JSON: true})
	if err != nil {
		return nil, fmt.Errorf("outline request failed: %w", err)
	}

	items, err := ParseOutline(raw)
	if err != nil {
		g.logger.Debug("Unusable outline response", "response", util.TruncateString(raw, 500))
		return nil, err
	}

	g.logger.Info("Outline generated",
		"sections", len(items),
		"duration", time.Since(start).Round(time.Millisecond))
	return items, nil
}

// GenerateSection drafts one section and returns its cleaned LaTeX body
func (g *LLMGenerator) GenerateSection(ctx context.Context, req SectionRequest) (string, error) {
	prompt, err := util.RenderTemplate(g.templates.SectionGeneration, sectionData{
		Title:              req.Paper.Title,
		Tone:               string(req.Paper.Tone),
		Template:           string(req.Paper.Template),
		TargetLength:       string(req.Paper.TargetLength),
		Roadmap:            req.RoadmapText(),
		SectionTitle:       req.Section.Title,
		SectionDescription: req.Section.Description,
		PreviousContext:    req.PreviousContext,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render section template: %w", err)
	}

	raw, err := g.section.Complete(ctx, messages(g.templates.SectionSystemPrompt, prompt), CompletionOptions{})
	if err != nil {
		return "", err
	}

	content := util.CleanLatex(raw)
	if content == "" {
		return "", ErrEmptySection
	}
	return content, nil
}

func messages(system, user string) []api.Message {
	msgs := make([]api.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, api.Message{Role: api.RoleSystem, Content: system})
	}
	return append(msgs, api.Message{Role: api.RoleUser, Content: user})
}
