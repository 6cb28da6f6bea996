package models

import "time"

// Phase is the top-level step of a drafting session
type Phase string

const (
	PhaseInput      Phase = "input"
	PhaseOutline    Phase = "outline"
	PhaseGenerating Phase = "generating"
	PhaseFinished   Phase = "finished"
)

// Session represents the saved state of a drafting session
type Session struct {
	// Session identification
	SessionID   string    `json:"session_id"`    // UUID for this session
	CreatedAt   time.Time `json:"created_at"`    // When session started
	LastSavedAt time.Time `json:"last_saved_at"` // Last save time

	Phase    Phase       `json:"phase"`
	Config   PaperConfig `json:"config"`
	Sections []Section   `json:"sections"`

	Stats SessionStats `json:"stats"`

	// Hash of the paper config, used to detect a config swapped under a resumed session
	ConfigHash string `json:"config_hash"`
}
