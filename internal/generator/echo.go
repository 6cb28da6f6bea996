package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lamim/paperforge/pkg/models"
)

// EchoGenerator is an offline ContentGenerator for dry runs. It derives the outline
// from the sketch's headings and bullets and drafts each section from its description.
type EchoGenerator struct {
	delay time.Duration
}

// NewEchoGenerator creates an echo generator that sleeps delay per call
func NewEchoGenerator(delay time.Duration) *EchoGenerator {
	return &EchoGenerator{delay: delay}
}

// GenerateOutline implements ContentGenerator
func (e *EchoGenerator) GenerateOutline(ctx context.Context, paper models.PaperConfig) ([]models.OutlineItem, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}

	items := sketchOutline(paper.RawSketch)
	if len(items) == 0 {
		items = []models.OutlineItem{
			{Title: "Introduction", Description: strings.TrimSpace(paper.RawSketch)},
			{Title: "Main Results", Description: "State and prove the main results."},
			{Title: "Conclusion", Description: "Summarise the findings."},
		}
	}
	return items, nil
}

// GenerateSection implements ContentGenerator
func (e *EchoGenerator) GenerateSection(ctx context.Context, req SectionRequest) (string, error) {
	if err := e.wait(ctx); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\\section{%s}\n", req.Section.Title)
	b.WriteString(req.Section.Description)
	fmt.Fprintf(&b, "\n\n%% Drafted offline; previous context had %d characters.", len([]rune(req.PreviousContext)))
	return b.String(), nil
}

func (e *EchoGenerator) wait(ctx context.Context) error {
	if e.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.delay):
		return nil
	}
}

// sketchOutline turns top-level "#" headings or "-"/"*" bullets into sections;
// indented lines that follow become the description.
func sketchOutline(sketch string) []models.OutlineItem {
	var items []models.OutlineItem
	for _, line := range strings.Split(sketch, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		topLevel := line == strings.TrimLeft(line, " \t")
		title, isHeading := headingTitle(trimmed)
		if topLevel && isHeading && title != "" {
			items = append(items, models.OutlineItem{Title: title})
			continue
		}
		if len(items) == 0 {
			continue
		}

		last := &items[len(items)-1]
		if last.Description != "" {
			last.Description += "\n"
		}
		last.Description += trimmed
	}

	for i := range items {
		if items[i].Description == "" {
			items[i].Description = "Discuss " + items[i].Title + "."
		}
	}
	return items
}

func headingTitle(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "#"):
		return strings.TrimSpace(strings.TrimLeft(line, "#")), true
	case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
		return strings.TrimSpace(line[2:]), true
	default:
		return "", false
	}
}
