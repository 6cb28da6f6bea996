package checkpoint

import (
	"fmt"

	"github.com/lamim/paperforge/pkg/models"
)

// ValidateSession verifies a saved session can be resumed with the given paper settings
func ValidateSession(s *models.Session, cfg models.PaperConfig) error {
	expectedHash := ConfigHash(cfg)
	if s.ConfigHash != expectedHash {
		return fmt.Errorf("session config mismatch: session was created with a different title, style or sketch (hash: %s vs %s)", s.ConfigHash, expectedHash)
	}

	if s.Phase == models.PhaseFinished {
		return fmt.Errorf("session is already finished, nothing to resume")
	}

	return nil
}

// PendingSections returns the sections that still need drafting, in order.
// A section saved in_progress counts as pending.
func PendingSections(s *models.Session) []models.Section {
	var pending []models.Section
	for _, sec := range s.Sections {
		if sec.Status == models.StatusPending || sec.Status == models.StatusInProgress {
			pending = append(pending, sec)
		}
	}
	return pending
}

// FailedSections returns the sections whose generation failed
func FailedSections(s *models.Session) []models.Section {
	var failed []models.Section
	for _, sec := range s.Sections {
		if sec.Status == models.StatusFailed {
			failed = append(failed, sec)
		}
	}
	return failed
}

// GetCompletedCount returns the number of completed sections
func GetCompletedCount(s *models.Session) int {
	n := 0
	for _, sec := range s.Sections {
		if sec.Status == models.StatusCompleted {
			n++
		}
	}
	return n
}

// GetProgressPercentage returns the share of completed sections
func GetProgressPercentage(s *models.Session) float64 {
	total := len(s.Sections)
	if total == 0 {
		return 0.0
	}
	return float64(GetCompletedCount(s)) / float64(total) * 100.0
}
