package writer

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/lamim/paperforge/pkg/models"
	"gopkg.in/yaml.v3"
)

// OutlineFile is the on-disk outline a user reviews between phases
type OutlineFile struct {
	Title    string               `yaml:"title,omitempty"`
	Sections []models.OutlineItem `yaml:"sections"`
}

// WriteOutline saves the section list as editable YAML
func WriteOutline(path, title string, list []models.Section) error {
	file := OutlineFile{Title: title, Sections: make([]models.OutlineItem, len(list))}
	for i, s := range list {
		file.Sections[i] = models.OutlineItem{Title: s.Title, Description: s.Description}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("failed to encode outline: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode outline: %w", err)
	}

	return writeFileAtomic(path, buf.Bytes())
}

// ReadOutline loads an outline file. Every item needs a title and a description.
func ReadOutline(path string) ([]models.OutlineItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outline: %w", err)
	}

	var file OutlineFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse outline %s: %w", path, err)
	}
	if len(file.Sections) == 0 {
		return nil, fmt.Errorf("outline %s has no sections", path)
	}

	for i := range file.Sections {
		file.Sections[i].Title = strings.TrimSpace(file.Sections[i].Title)
		file.Sections[i].Description = strings.TrimSpace(file.Sections[i].Description)
		if err := file.Sections[i].Validate(); err != nil {
			return nil, fmt.Errorf("outline %s, section %d: %w", path, i+1, err)
		}
	}
	return file.Sections, nil
}
