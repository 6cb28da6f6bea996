package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// SectionStatus is the generation state of a single section
type SectionStatus string

const (
	StatusPending    SectionStatus = "pending"
	StatusInProgress SectionStatus = "in_progress"
	StatusCompleted  SectionStatus = "completed"
	StatusFailed     SectionStatus = "failed"
)

// Valid reports whether s is one of the four known statuses
func (s SectionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible within a run
func (s SectionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed:
		return true
	case StatusPending, StatusInProgress:
		return false
	default:
		panic(fmt.Sprintf("unknown section status %q", string(s)))
	}
}

// Section is one structural unit of the target document
type Section struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"` // Drafting instructions taken from the sketch
	Content     string        `json:"content"`     // Generated LaTeX body, empty until completed
	Status      SectionStatus `json:"status"`
	Error       string        `json:"error,omitempty"` // Failure reason when Status is failed
}

// OutlineItem is a section stub returned by outline generation
type OutlineItem struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// Validate checks that both fields are present
func (o OutlineItem) Validate() error {
	if strings.TrimSpace(o.Title) == "" {
		return fmt.Errorf("outline item is missing a title")
	}
	if strings.TrimSpace(o.Description) == "" {
		return fmt.Errorf("outline item %q is missing a description", o.Title)
	}
	return nil
}

// Tone is the writing style requested for the paper
type Tone string

const (
	ToneFormalAcademic  Tone = "Formal Academic"
	ToneCasualBlog      Tone = "Casual/Blog"
	ToneTechnicalReport Tone = "Technical Report"
)

// Template is the output style of the paper
type Template string

const (
	TemplateStandardArticle Template = "Standard Article"
	TemplateIEEE            Template = "IEEE"
	TemplateACM             Template = "ACM"
	TemplateMinimalist      Template = "Minimalist"
)

// PaperLength is the scope class of the paper
type PaperLength string

const (
	LengthShortLetter      PaperLength = "Short Letter (2-4 pages)"
	LengthStandardArticle  PaperLength = "Standard Article (8-12 pages)"
	LengthExtendedReport   PaperLength = "Extended Report (20-30 pages)"
	LengthDissertationBook PaperLength = "Dissertation/Book (40+ pages)"
)

// Tones lists every accepted tone
var Tones = []Tone{ToneFormalAcademic, ToneCasualBlog, ToneTechnicalReport}

// Templates lists every accepted template
var Templates = []Template{TemplateStandardArticle, TemplateIEEE, TemplateACM, TemplateMinimalist}

// PaperLengths lists every accepted length class, shortest first
var PaperLengths = []PaperLength{LengthShortLetter, LengthStandardArticle, LengthExtendedReport, LengthDissertationBook}

// PaperConfig holds paper-level parameters, fixed once the outline exists
type PaperConfig struct {
	Title        string      `json:"title" toml:"title"`
	Tone         Tone        `json:"tone" toml:"tone"`
	Template     Template    `json:"template" toml:"template"`
	TargetLength PaperLength `json:"target_length" toml:"target_length"`
	RawSketch    string      `json:"raw_sketch" toml:"sketch"`
}

// DefaultPaperConfig returns an empty paper with the default style choices
func DefaultPaperConfig() PaperConfig {
	return PaperConfig{
		Tone:         ToneFormalAcademic,
		Template:     TemplateStandardArticle,
		TargetLength: LengthStandardArticle,
	}
}

// Validate checks required fields and enum values
func (p PaperConfig) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("paper title is required")
	}
	if strings.TrimSpace(p.RawSketch) == "" {
		return fmt.Errorf("paper sketch is required")
	}
	if !p.Tone.Valid() {
		return fmt.Errorf("unknown tone %q (valid: %s)", p.Tone, JoinTones())
	}
	if !p.Template.Valid() {
		return fmt.Errorf("unknown template %q (valid: %s)", p.Template, JoinTemplates())
	}
	if !p.TargetLength.Valid() {
		return fmt.Errorf("unknown target length %q (valid: %s)", p.TargetLength, JoinPaperLengths())
	}
	return nil
}

// Valid reports whether t is a known tone
func (t Tone) Valid() bool { return slices.Contains(Tones, t) }

// Valid reports whether t is a known template
func (t Template) Valid() bool { return slices.Contains(Templates, t) }

// Valid reports whether l is a known length class
func (l PaperLength) Valid() bool { return slices.Contains(PaperLengths, l) }

// JoinTones lists the accepted tones for error messages
func JoinTones() string { return join(Tones) }

// JoinTemplates lists the accepted templates for error messages
func JoinTemplates() string { return join(Templates) }

// JoinPaperLengths lists the accepted length classes for error messages
func JoinPaperLengths() string { return join(PaperLengths) }

func join[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// SessionStats tracks statistics for a drafting session
type SessionStats struct {
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	Completed       int           `json:"completed"`
	Failed          int           `json:"failed"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
}
