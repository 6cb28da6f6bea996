package writer

import (
	"errors"
	"fmt"
	"os"

	"github.com/atotto/clipboard"
)

// ErrClipboardUnavailable is returned when no system clipboard tool is installed
var ErrClipboardUnavailable = errors.New("system clipboard is not available")

// WriteDocument saves the assembled document
func WriteDocument(path, content string) error {
	if err := writeFileAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// CopyToClipboard places the document on the system clipboard
func CopyToClipboard(content string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnavailable
	}
	if err := clipboard.WriteAll(content); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}
