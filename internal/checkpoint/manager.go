package checkpoint

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lamim/paperforge/pkg/models"
)

const SessionFilename = "session.json"

// Manager persists session snapshots with async write support
type Manager struct {
	sessionDir string
	session    *models.Session
	mu         sync.RWMutex
	logger     *slog.Logger
	enabled    bool

	// Async write support
	writeChan   chan *models.Session
	writeWg     sync.WaitGroup
	stopWriter  chan struct{}
	writerError error
	errorMu     sync.Mutex
	writeMu     sync.Mutex // Protects concurrent disk writes
}

// NewManager creates a manager writing into sessionDir. A disabled manager accepts
// every call and writes nothing.
func NewManager(sessionDir string, enabled bool, logger *slog.Logger) *Manager {
	m := &Manager{
		sessionDir: sessionDir,
		logger:     logger,
		enabled:    enabled,
		writeChan:  make(chan *models.Session, 10), // Buffer up to 10 pending writes
		stopWriter: make(chan struct{}),
	}

	if m.enabled {
		m.startAsyncWriter()
	}

	return m
}

// startAsyncWriter starts the background writer goroutine
func (m *Manager) startAsyncWriter() {
	m.writeWg.Add(1)
	go func() {
		defer m.writeWg.Done()
		for {
			select {
			case s := <-m.writeChan:
				if err := m.writeToDisk(s); err != nil {
					m.errorMu.Lock()
					m.writerError = err
					m.errorMu.Unlock()
					m.logger.Error("Failed to write session", "error", err)
				}
			case <-m.stopWriter:
				// Drain remaining writes before stopping
				for len(m.writeChan) > 0 {
					s := <-m.writeChan
					if err := m.writeToDisk(s); err != nil {
						m.logger.Error("Failed to write session during shutdown", "error", err)
					}
				}
				return
			}
		}
	}()
}

// writeToDisk writes s atomically: temp file, then rename
func (m *Manager) writeToDisk(s *models.Session) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	path := filepath.Join(m.sessionDir, SessionFilename)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp session file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename session file: %w", err)
	}

	m.logger.Debug("Session saved", "path", path, "phase", s.Phase, "sections", len(s.Sections))
	return nil
}

// record stamps s and keeps a private copy as the latest state
func (m *Manager) record(s models.Session) *models.Session {
	s.LastSavedAt = time.Now()
	s.ConfigHash = ConfigHash(s.Config)
	s.Sections = append([]models.Section(nil), s.Sections...)

	m.mu.Lock()
	m.session = &s
	m.mu.Unlock()

	cp := s
	cp.Sections = append([]models.Section(nil), s.Sections...)
	return &cp
}

// Save queues s for an async write
func (m *Manager) Save(s models.Session) error {
	if !m.enabled {
		return nil
	}

	cp := m.record(s)

	// Queue for async write (non-blocking if buffer has space)
	select {
	case m.writeChan <- cp:
		return nil
	default:
		m.logger.Warn("Session write buffer full, writing synchronously")
		return m.writeToDisk(cp)
	}
}

// SaveSync writes s before returning; used on phase transitions
func (m *Manager) SaveSync(s models.Session) error {
	if !m.enabled {
		return nil
	}
	return m.writeToDisk(m.record(s))
}

// Latest returns a copy of the last saved session, or nil before the first save
func (m *Manager) Latest() *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	cp := *m.session
	cp.Sections = append([]models.Section(nil), m.session.Sections...)
	return &cp
}

// Close stops the async writer and waits for pending writes
func (m *Manager) Close() error {
	if !m.enabled {
		return nil
	}

	close(m.stopWriter)
	m.writeWg.Wait()

	m.errorMu.Lock()
	defer m.errorMu.Unlock()
	return m.writerError
}

// Load reads a saved session from sessionDir
func Load(sessionDir string, logger *slog.Logger) (*models.Session, error) {
	path := filepath.Join(sessionDir, SessionFilename)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	logger.Info("Session loaded",
		"session_id", s.SessionID,
		"phase", s.Phase,
		"sections", len(s.Sections))

	return &s, nil
}

// ConfigHash fingerprints the paper settings that shape the generated text
func ConfigHash(cfg models.PaperConfig) string {
	data := fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%s",
		cfg.Title, cfg.Tone, cfg.Template, cfg.TargetLength, cfg.RawSketch)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:8]) // First 8 bytes
}

// Autosaver is a pipeline observer that saves the session after each resolved section
type Autosaver struct {
	m        *Manager
	snapshot func() models.Session
}

// Autosave returns an observer that saves snapshot() whenever a section resolves
func (m *Manager) Autosave(snapshot func() models.Session) *Autosaver {
	return &Autosaver{m: m, snapshot: snapshot}
}

// SectionStarted saves the in_progress marker so an interrupted step is visible
func (a *Autosaver) SectionStarted(models.Section) {
	if err := a.m.Save(a.snapshot()); err != nil {
		a.m.logger.Warn("Autosave failed", "error", err)
	}
}

// SectionFinished saves the recorded outcome
func (a *Autosaver) SectionFinished(models.Section, time.Duration, error) {
	if err := a.m.Save(a.snapshot()); err != nil {
		a.m.logger.Warn("Autosave failed", "error", err)
	}
}
