// Package sections holds the ordered, mutex-protected list of sections of one paper.
//
// Every status change goes through the Store so the lifecycle rules hold:
// pending → in_progress → completed | failed, at most one section in_progress,
// and no title or description edits once generation has started.
package sections

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lamim/paperforge/pkg/models"
)

var (
	// ErrNotFound is returned for an unknown section ID
	ErrNotFound = errors.New("section not found")
	// ErrFrozen is returned when editing a section whose identity is fixed
	ErrFrozen = errors.New("section can no longer be edited")
	// ErrInvalidTransition is returned for a status change the lifecycle forbids
	ErrInvalidTransition = errors.New("invalid section status transition")
	// ErrBusy is returned when a section is already in progress
	ErrBusy = errors.New("a section is already in progress")
)

// StatusCounts is the number of sections per status
type StatusCounts map[models.SectionStatus]int

// Total returns the number of sections counted
func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Store is the ordered section list shared by the phase controller and the pipeline
type Store struct {
	mu       sync.Mutex
	sections []models.Section
	frozen   bool
	newID    func() string
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{newID: uuid.NewString}
}

// Add appends a new pending section and returns it
func (s *Store) Add(title, description string) models.Section {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec := models.Section{
		ID:          s.newID(),
		Title:       title,
		Description: description,
		Status:      models.StatusPending,
	}
	s.sections = append(s.sections, sec)
	return sec
}

// Replace discards every section and builds fresh pending ones from an outline
func (s *Store) Replace(items []models.OutlineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return ErrFrozen
	}

	fresh := make([]models.Section, 0, len(items))
	for _, item := range items {
		fresh = append(fresh, models.Section{
			ID:          s.newID(),
			Title:       item.Title,
			Description: item.Description,
			Status:      models.StatusPending,
		})
	}
	s.sections = fresh
	return nil
}

// Update changes the title and description of an editable section
func (s *Store) Update(id, title, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.editableIndex(id)
	if err != nil {
		return err
	}
	s.sections[i].Title = title
	s.sections[i].Description = description
	return nil
}

// Delete removes an editable section
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.editableIndex(id)
	if err != nil {
		return err
	}
	s.sections = append(s.sections[:i], s.sections[i+1:]...)
	return nil
}

// Move relocates an editable section to newIndex, clamped to the list bounds
func (s *Store) Move(id string, newIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.editableIndex(id)
	if err != nil {
		return err
	}
	newIndex = min(max(newIndex, 0), len(s.sections)-1)
	if newIndex == i {
		return nil
	}

	sec := s.sections[i]
	s.sections = append(s.sections[:i], s.sections[i+1:]...)
	s.sections = append(s.sections[:newIndex], append([]models.Section{sec}, s.sections[newIndex:]...)...)
	return nil
}

// Freeze fixes section identity; called when generation starts
func (s *Store) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

// Frozen reports whether identity edits are rejected
func (s *Store) Frozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}

// BeginNext atomically selects the first pending section in list order and marks it
// in_progress. It returns the target as marked, plus a snapshot of the whole list taken
// after marking. ok is false when nothing is pending. ErrBusy is returned if another
// section is already in progress.
func (s *Store) BeginNext() (target models.Section, snapshot []models.Section, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := -1
	for i, sec := range s.sections {
		switch sec.Status {
		case models.StatusInProgress:
			return models.Section{}, nil, false, ErrBusy
		case models.StatusPending:
			if next == -1 {
				next = i
			}
		case models.StatusCompleted, models.StatusFailed:
		}
	}
	if next == -1 {
		return models.Section{}, nil, false, nil
	}

	s.sections[next].Status = models.StatusInProgress
	return s.sections[next], s.snapshotLocked(), true, nil
}

// Complete records generated content for an in-progress section
func (s *Store) Complete(id, content string) error {
	return s.transition(id, models.StatusInProgress, func(sec *models.Section) {
		sec.Status = models.StatusCompleted
		sec.Content = content
		sec.Error = ""
	})
}

// Fail records a generation failure for an in-progress section
func (s *Store) Fail(id, reason string) error {
	return s.transition(id, models.StatusInProgress, func(sec *models.Section) {
		sec.Status = models.StatusFailed
		sec.Error = reason
	})
}

// Revert returns an interrupted in-progress section to pending
func (s *Store) Revert(id string) error {
	return s.transition(id, models.StatusInProgress, func(sec *models.Section) {
		sec.Status = models.StatusPending
	})
}

// Retry returns a failed section to pending, clearing its content and error
func (s *Store) Retry(id string) error {
	return s.transition(id, models.StatusFailed, func(sec *models.Section) {
		sec.Status = models.StatusPending
		sec.Content = ""
		sec.Error = ""
	})
}

// RetryFailed returns every failed section to pending and reports how many changed
func (s *Store) RetryFailed() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.sections {
		if s.sections[i].Status == models.StatusFailed {
			s.sections[i].Status = models.StatusPending
			s.sections[i].Content = ""
			s.sections[i].Error = ""
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the list
func (s *Store) Snapshot() []models.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Get returns a copy of one section
func (s *Store) Get(id string) (models.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i == -1 {
		return models.Section{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.sections[i], nil
}

// Len returns the number of sections
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sections)
}

// Counts returns the number of sections per status
func (s *Store) Counts() StatusCounts {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := StatusCounts{}
	for _, sec := range s.sections {
		counts[sec.Status]++
	}
	return counts
}

// Settled reports whether no section is pending or in progress
func (s *Store) Settled() bool {
	counts := s.Counts()
	return counts[models.StatusPending] == 0 && counts[models.StatusInProgress] == 0
}

// AllCompleted reports whether the list is non-empty and every section is completed
func (s *Store) AllCompleted() bool {
	counts := s.Counts()
	total := counts.Total()
	return total > 0 && counts[models.StatusCompleted] == total
}

// Restore replaces the list with persisted sections. Sections left in_progress by an
// interrupted run are returned to pending. Sections with an unknown status are rejected.
func (s *Store) Restore(saved []models.Section, frozen bool) error {
	restored := make([]models.Section, len(saved))
	for i, sec := range saved {
		if !sec.Status.Valid() {
			return fmt.Errorf("section %s has unknown status %q", sec.ID, sec.Status)
		}
		if sec.ID == "" {
			return fmt.Errorf("section %d has no id", i)
		}
		if sec.Status == models.StatusInProgress {
			sec.Status = models.StatusPending
		}
		restored[i] = sec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections = restored
	s.frozen = frozen
	return nil
}

// Reset empties the store and lifts the freeze
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections = nil
	s.frozen = false
}

func (s *Store) transition(id string, from models.SectionStatus, apply func(*models.Section)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i == -1 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.sections[i].Status != from {
		return fmt.Errorf("%w: section %s is %s, expected %s", ErrInvalidTransition, id, s.sections[i].Status, from)
	}
	apply(&s.sections[i])
	return nil
}

func (s *Store) editableIndex(id string) (int, error) {
	i := s.indexOf(id)
	if i == -1 {
		return -1, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.frozen || s.sections[i].Status != models.StatusPending {
		return -1, fmt.Errorf("%w: %s", ErrFrozen, id)
	}
	return i, nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.sections {
		if s.sections[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []models.Section {
	out := make([]models.Section, len(s.sections))
	copy(out, s.sections)
	return out
}
