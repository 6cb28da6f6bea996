package writer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const sessionPrefix = "session_"

// SessionManager manages session directories and files
type SessionManager struct {
	outputDir  string
	sessionDir string
	logger     *slog.Logger
}

// NewSessionManager creates a new session directory under outputDir, or reopens
// resumeFromSession when it is set
func NewSessionManager(outputDir string, logger *slog.Logger, resumeFromSession string) (*SessionManager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var sessionDir string
	if resumeFromSession != "" {
		if err := ValidateSessionPath(outputDir, resumeFromSession); err != nil {
			return nil, err
		}
		// Resume mode: use existing session directory
		sessionDir = filepath.Join(outputDir, resumeFromSession)
		if _, err := os.Stat(sessionDir); os.IsNotExist(err) {
			return nil, fmt.Errorf("session directory not found: %s", sessionDir)
		}
		logger.Debug("Reopened session", "path", sessionDir)
	} else {
		// New session: create timestamped directory
		timestamp := time.Now().Format("2006-01-02T15-04-05")
		sessionDir = filepath.Join(outputDir, sessionPrefix+timestamp)

		if err := os.MkdirAll(sessionDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}

		logger.Info("Created new session directory", "path", sessionDir)
	}

	return &SessionManager{
		outputDir:  outputDir,
		sessionDir: sessionDir,
		logger:     logger,
	}, nil
}

// GetSessionDir returns the session directory path
func (sm *SessionManager) GetSessionDir() string {
	return sm.sessionDir
}

// GetSessionName returns the session directory name, as accepted by resume
func (sm *SessionManager) GetSessionName() string {
	return filepath.Base(sm.sessionDir)
}

// GetLogPath returns the full path to the session log file
func (sm *SessionManager) GetLogPath() string {
	return filepath.Join(sm.sessionDir, "session.log")
}

// GetOutlinePath returns the full path to the editable outline file
func (sm *SessionManager) GetOutlinePath() string {
	return filepath.Join(sm.sessionDir, "outline.yaml")
}

// GetDocumentPath returns the full path to the assembled document
func (sm *SessionManager) GetDocumentPath(filename string) string {
	return filepath.Join(sm.sessionDir, filename)
}

// GetPreviewDir returns the directory for rendered section previews
func (sm *SessionManager) GetPreviewDir() string {
	return filepath.Join(sm.sessionDir, "preview")
}

// GetConfigBackupPath returns the full path to the config backup
func (sm *SessionManager) GetConfigBackupPath() string {
	return filepath.Join(sm.sessionDir, "config.toml.bak")
}

// BackupConfig copies the config file to the session directory
func (sm *SessionManager) BackupConfig(configPath string) error {
	source, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	backupPath := sm.GetConfigBackupPath()
	if err := os.WriteFile(backupPath, source, 0644); err != nil {
		return fmt.Errorf("failed to write config backup: %w", err)
	}

	sm.logger.Info("Backed up config file", "path", backupPath)
	return nil
}

// ListSessions returns the session directory names under outputDir, newest first
func ListSessions(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && sessionNamePattern.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	// The timestamp format sorts lexically
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}
