package config

import (
	"fmt"
	"net/url"
	"unicode"

	"github.com/lamim/paperforge/internal/util"
)

const (
	// MaxTitleLength is the maximum allowed length for the paper title
	MaxTitleLength = 500

	// MaxSketchSize is the maximum allowed size of the raw sketch
	MaxSketchSize = 256 * 1024 // 256KB

	// MaxModelNameLength is the maximum allowed length for model names
	MaxModelNameLength = 100

	// MaxTemplateSize is the maximum allowed size for template content
	MaxTemplateSize = 50 * 1024 // 50KB
)

// ValidateInputs performs additional security validation on user-controllable fields.
// This prevents potential DoS attacks, injection attacks, and other security issues.
func (c *Config) ValidateInputs() error {
	if err := ValidateTitle(c.Paper.Title); err != nil {
		return fmt.Errorf("invalid paper.title: %w", err)
	}
	if err := ValidateSketch(c.Paper.Sketch); err != nil {
		return fmt.Errorf("invalid paper.sketch: %w", err)
	}

	// Validate model configurations
	for name, mc := range c.Models {
		if err := validateModelName(mc.ModelName, name); err != nil {
			return err
		}

		if mc.Provider == ProviderEcho {
			continue
		}
		if err := validateBaseURL(mc.BaseURL, name); err != nil {
			return err
		}
	}

	// Validate templates
	if err := c.validateTemplates(); err != nil {
		return err
	}

	return nil
}

// ValidateTitle checks the paper title for security issues
func ValidateTitle(title string) error {
	if len(title) > MaxTitleLength {
		return fmt.Errorf("exceeds maximum length of %d characters (got %d)",
			MaxTitleLength, len(title))
	}

	// Check for control characters (except newlines and tabs)
	if containsControlChars(title) {
		return fmt.Errorf("contains invalid control characters")
	}

	return nil
}

// ValidateSketch checks the raw sketch size
func ValidateSketch(sketch string) error {
	if len(sketch) > MaxSketchSize {
		return fmt.Errorf("exceeds maximum size of %d bytes (got %d)", MaxSketchSize, len(sketch))
	}
	if containsControlChars(sketch) {
		return fmt.Errorf("contains invalid control characters")
	}
	return nil
}

// validateModelName checks model name for security issues
func validateModelName(modelName, configKey string) error {
	if len(modelName) > MaxModelNameLength {
		return fmt.Errorf("model '%s' name exceeds maximum length of %d (got %d)",
			configKey, MaxModelNameLength, len(modelName))
	}

	// Check for control characters
	if containsControlChars(modelName) {
		return fmt.Errorf("model '%s' name contains invalid control characters", configKey)
	}

	return nil
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL, configKey string) error {
	// Parse URL
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("model '%s' has invalid base_url: %w", configKey, err)
	}

	// Check scheme
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("model '%s' base_url must use http or https scheme (got %s)",
			configKey, u.Scheme)
	}

	// Check host is present
	if u.Host == "" {
		return fmt.Errorf("model '%s' base_url must have a host", configKey)
	}

	return nil
}

// validateTemplates checks template sizes and forbidden directives
func (c *Config) validateTemplates() error {
	templates := []struct {
		name  string
		value string
	}{
		{"outline_generation", c.PromptTemplates.OutlineGeneration},
		{"section_generation", c.PromptTemplates.SectionGeneration},
		{"outline_system_prompt", c.PromptTemplates.OutlineSystemPrompt},
		{"section_system_prompt", c.PromptTemplates.SectionSystemPrompt},
	}

	for _, tmpl := range templates {
		if len(tmpl.value) > MaxTemplateSize {
			return fmt.Errorf("template '%s' exceeds maximum size of %d bytes (got %d)",
				tmpl.name, MaxTemplateSize, len(tmpl.value))
		}
		if err := util.CheckTemplateDirectives(tmpl.value); err != nil {
			return fmt.Errorf("template '%s': %w", tmpl.name, err)
		}
	}

	return nil
}

// containsControlChars checks if a string contains control characters
// (excluding newlines, tabs, and carriage returns which are acceptable)
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
