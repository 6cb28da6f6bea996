package writer

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidSessionName is wrapped by every ValidateSessionPath rejection
var ErrInvalidSessionName = errors.New("invalid session name")

// sessionNamePattern matches names produced by NewSessionManager, e.g. session_2025-10-30T14-30-00
var sessionNamePattern = regexp.MustCompile(`^` + sessionPrefix + `\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}$`)

// ValidateSessionPath checks that sessionName is a plain session directory name
// that stays inside outputDir. Session names come from the command line, so this
// runs before any path is joined.
func ValidateSessionPath(outputDir, sessionName string) error {
	switch {
	case sessionName == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidSessionName)
	case strings.Contains(sessionName, ".."):
		return fmt.Errorf("%w: %q contains '..'", ErrInvalidSessionName, sessionName)
	case filepath.IsAbs(sessionName):
		return fmt.Errorf("%w: %q is an absolute path", ErrInvalidSessionName, sessionName)
	case strings.ContainsAny(sessionName, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidSessionName, sessionName)
	case !sessionNamePattern.MatchString(sessionName):
		return fmt.Errorf("%w: expected %sYYYY-MM-DDTHH-MM-SS, got %q", ErrInvalidSessionName, sessionPrefix, sessionName)
	}

	root, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	dir, err := filepath.Abs(filepath.Join(outputDir, sessionName))
	if err != nil {
		return fmt.Errorf("failed to resolve session path: %w", err)
	}

	// The separator suffix keeps "/out" from matching "/out-other"
	if !strings.HasPrefix(dir, root+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q resolves outside %s", ErrInvalidSessionName, sessionName, outputDir)
	}
	return nil
}
