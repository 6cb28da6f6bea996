package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lamim/paperforge/internal/checkpoint"
	"github.com/lamim/paperforge/internal/config"
	"github.com/lamim/paperforge/internal/tui"
	"github.com/lamim/paperforge/pkg/models"
)

const (
	partialFilename  = "paper.partial.tex"
	defaultOutputDir = "output"
)

// resolveSection finds a section by 1-based number, full ID or unique ID prefix
func resolveSection(list []models.Section, ref string) (models.Section, int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Section{}, -1, fmt.Errorf("section reference is empty")
	}

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(list) {
			return models.Section{}, -1, fmt.Errorf("section number %d out of range (1-%d)", n, len(list))
		}
		return list[n-1], n - 1, nil
	}

	match := -1
	for i, s := range list {
		if s.ID == ref {
			return s, i, nil
		}
		if strings.HasPrefix(s.ID, ref) {
			if match >= 0 {
				return models.Section{}, -1, fmt.Errorf("section prefix %q is ambiguous", ref)
			}
			match = i
		}
	}
	if match < 0 {
		return models.Section{}, -1, fmt.Errorf("no section matches %q", ref)
	}
	return list[match], match, nil
}

// sessionOutputDir returns the configured output directory, or the default when
// no usable config is present
func sessionOutputDir() string {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return defaultOutputDir
	}
	return cfg.Generation.OutputDir
}

// loadQuiet reads a saved session without logging
func loadQuiet(outputDir, name string) (*models.Session, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return checkpoint.Load(filepath.Join(outputDir, name), logger)
}

func ruler(n int) string {
	return strings.Repeat("-", n)
}

// printSession displays the details of a saved session
func printSession(name string, s *models.Session) {
	fmt.Println(tui.TitleStyle.Render("Session: " + name))
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Session ID:          %s\n", s.SessionID)
	fmt.Printf("Created At:          %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Last Saved At:       %s\n", s.LastSavedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Phase:               %s\n", s.Phase)
	fmt.Printf("Config Hash:         %s\n", s.ConfigHash)
	fmt.Println()

	fmt.Println("Paper:")
	fmt.Printf("  Title:             %s\n", s.Config.Title)
	fmt.Printf("  Tone:              %s\n", s.Config.Tone)
	fmt.Printf("  Template:          %s\n", s.Config.Template)
	fmt.Printf("  Target Length:     %s\n", s.Config.TargetLength)
	fmt.Println()

	fmt.Printf("Sections:            %d / %d completed (%.1f%%)\n",
		checkpoint.GetCompletedCount(s), len(s.Sections), checkpoint.GetProgressPercentage(s))
	fmt.Println(tui.SectionTable(s.Sections))
	fmt.Println()

	if s.Stats.Completed+s.Stats.Failed > 0 {
		fmt.Println("Statistics:")
		fmt.Printf("  Completed:         %d\n", s.Stats.Completed)
		fmt.Printf("  Failed:            %d\n", s.Stats.Failed)
		fmt.Printf("  Total Duration:    %s\n", s.Stats.TotalDuration)
		fmt.Printf("  Average Duration:  %s\n", s.Stats.AverageDuration)
		fmt.Println()
	}

	switch s.Phase {
	case models.PhaseInput:
		fmt.Println("No outline yet. Start over with: paperforge outline")
	case models.PhaseOutline:
		fmt.Printf("To continue, run:\n  paperforge review %s\n  OR: paperforge write %s\n", name, name)
	case models.PhaseGenerating:
		if len(checkpoint.FailedSections(s)) > 0 {
			fmt.Printf("To retry failed sections, run:\n  paperforge retry %s\n", name)
		} else {
			fmt.Printf("To resume this session, run:\n  paperforge write %s\n", name)
		}
	case models.PhaseFinished:
		fmt.Printf("This session is finished. Export with: paperforge export %s\n", name)
	}
}
