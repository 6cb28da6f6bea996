package main

import (
	"fmt"
	"time"

	"github.com/lamim/paperforge/internal/sections"
	"github.com/lamim/paperforge/pkg/models"
	"github.com/schollz/progressbar/v3"
)

const maxBarTitle = 32

// progressObserver advances a progress bar as sections resolve
type progressObserver struct {
	bar *progressbar.ProgressBar
}

func newProgressObserver(counts sections.StatusCounts) *progressObserver {
	bar := progressbar.Default(int64(counts.Total()), "Drafting sections")
	_ = bar.Set(counts[models.StatusCompleted] + counts[models.StatusFailed])
	return &progressObserver{bar: bar}
}

func (o *progressObserver) SectionStarted(section models.Section) {
	o.bar.Describe(fmt.Sprintf("Drafting %q", clip(section.Title, maxBarTitle)))
}

func (o *progressObserver) SectionFinished(section models.Section, _ time.Duration, _ error) {
	// Interrupted sections go back to pending and are not counted
	if section.Status == models.StatusCompleted || section.Status == models.StatusFailed {
		_ = o.bar.Add(1)
	}
}

func (o *progressObserver) Finish() {
	_ = o.bar.Finish()
	fmt.Println()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
