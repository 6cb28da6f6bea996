package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses the configuration file and environment variables
func Load(configPath string) (*Config, *Secrets, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}

	// Resolve sketch_file relative to the config file
	if err := cfg.loadSketchFile(filepath.Dir(configPath)); err != nil {
		return nil, nil, err
	}

	// Additional input security validation
	if err := cfg.ValidateInputs(); err != nil {
		return nil, nil, fmt.Errorf("input validation failed: %w", err)
	}

	// Load secrets from environment
	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return cfg, secrets, nil
}

// Parse decodes TOML, applies defaults and validates the result
func Parse(data []byte) (*Config, error) {
	// Booleans that default to true are seeded before decoding
	cfg := Config{
		Generation: GenerationConfig{EnableCheckpointing: true},
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process environment.
// Variables already set are not overridden. A missing default .env is not an error.
func LoadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadSketchFile(baseDir string) error {
	if c.Paper.Sketch != "" || c.Paper.SketchFile == "" {
		return nil
	}

	path := c.Paper.SketchFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read paper.sketch_file: %w", err)
	}
	c.Paper.Sketch = string(data)
	return nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Paper defaults
	if cfg.Paper.Tone == "" {
		cfg.Paper.Tone = "Formal Academic"
	}
	if cfg.Paper.Template == "" {
		cfg.Paper.Template = "Standard Article"
	}
	if cfg.Paper.TargetLength == "" {
		cfg.Paper.TargetLength = "Standard Article (8-12 pages)"
	}

	// Generation defaults
	if cfg.Generation.ContextWindowChars == 0 {
		cfg.Generation.ContextWindowChars = 3000
	}
	if cfg.Generation.OutputDir == "" {
		cfg.Generation.OutputDir = "output"
	}

	// Apply defaults for each model
	for name, model := range cfg.Models {
		if model.Provider == "" {
			model.Provider = ProviderHTTP
		}
		if model.Temperature == 0 {
			model.Temperature = 0.7
		}
		if model.TopP == 0 {
			model.TopP = 1.0
		}
		if model.MaxOutputTokens == 0 {
			model.MaxOutputTokens = 8192
		}
		if model.ContextSize == 0 {
			model.ContextSize = 32768
		}
		if model.RateLimitPerMinute == 0 {
			model.RateLimitPerMinute = 60
		}
		if model.MaxBackoffSeconds == 0 {
			model.MaxBackoffSeconds = 120 // 2 minutes default
		}
		// NOTE: In TOML, we can't distinguish 0 from unset, so:
		// - Unset (0) → defaults to 3
		// - Explicitly set to -1 → unlimited retries
		// - Any positive number → use that value
		if model.MaxRetries == 0 {
			model.MaxRetries = 3
		}
		// Section drafts are long; give them more room than a chat turn
		if model.HTTPTimeoutSeconds == 0 {
			model.HTTPTimeoutSeconds = 300
		}
		cfg.Models[name] = model
	}

	// Apply default templates if not provided
	if cfg.PromptTemplates.OutlineGeneration == "" {
		cfg.PromptTemplates.OutlineGeneration = GetDefaultOutlineTemplate()
	}
	if cfg.PromptTemplates.SectionGeneration == "" {
		cfg.PromptTemplates.SectionGeneration = GetDefaultSectionTemplate()
	}
}
