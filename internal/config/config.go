package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/lamim/paperforge/pkg/models"
)

// Config represents the complete application configuration
type Config struct {
	Paper           PaperSettings          `toml:"paper"`
	Generation      GenerationConfig       `toml:"generation"`
	Models          map[string]ModelConfig `toml:"models"`
	PromptTemplates PromptTemplates        `toml:"prompt_templates"`
	Metrics         MetricsConfig          `toml:"metrics"`
}

// PaperSettings holds the paper parameters collected in the Input phase
type PaperSettings struct {
	Title        string `toml:"title"`
	Tone         string `toml:"tone"`
	Template     string `toml:"template"`
	TargetLength string `toml:"target_length"`
	Sketch       string `toml:"sketch"`
	SketchFile   string `toml:"sketch_file"` // Read into Sketch when sketch is empty (relative to the config file)
}

// PaperConfig converts the settings into the domain type
func (p PaperSettings) PaperConfig() models.PaperConfig {
	return models.PaperConfig{
		Title:        strings.TrimSpace(p.Title),
		Tone:         models.Tone(p.Tone),
		Template:     models.Template(p.Template),
		TargetLength: models.PaperLength(p.TargetLength),
		RawSketch:    p.Sketch,
	}
}

// GenerationConfig holds generation-specific settings
type GenerationConfig struct {
	ContextWindowChars  int    `toml:"context_window_chars"` // Trailing characters of the previous section sent as context (default 3000)
	OutputDir           string `toml:"output_dir"`           // Parent directory for session directories (default "output")
	EnableCheckpointing bool   `toml:"enable_checkpointing"` // Persist session.json after every section (default true)
	ResumeFromSession   string `toml:"resume_from_session"`  // Session directory to resume from (e.g., "session_2025-10-27T12-34-56")
}

// Supported model providers
const (
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
	ProviderEcho   = "echo"
)

// ModelConfig represents configuration for a single model endpoint
type ModelConfig struct {
	Provider           string  `toml:"provider"` // http (default), openai or echo
	BaseURL            string  `toml:"base_url"`
	ModelName          string  `toml:"model_name"`
	Temperature        float64 `toml:"temperature"`
	TopP               float64 `toml:"top_p"`
	MaxOutputTokens    int     `toml:"max_output_tokens"`
	ContextSize        int     `toml:"context_size"`
	RateLimitPerMinute int     `toml:"rate_limit_per_minute"`
	MaxBackoffSeconds  int     `toml:"max_backoff_seconds"`  // Optional: max backoff duration (default 120)
	MaxRetries         int     `toml:"max_retries"`          // Optional: max retry attempts (default 3, -1 = unlimited)
	HTTPTimeoutSeconds int     `toml:"http_timeout_seconds"` // Optional: HTTP request timeout (default 300)
	UseJSONMode        bool    `toml:"use_json_mode"`        // Request structured JSON output for outline generation
	UseStreaming       bool    `toml:"use_streaming"`        // Enable streaming mode (bypasses gateway timeouts, default: false)
}

// PromptTemplates holds all customizable prompt templates
type PromptTemplates struct {
	OutlineGeneration   string `toml:"outline_generation"`
	SectionGeneration   string `toml:"section_generation"`
	OutlineSystemPrompt string `toml:"outline_system_prompt"` // Optional system prompt for outline generation
	SectionSystemPrompt string `toml:"section_system_prompt"` // Optional system prompt for section drafting
}

// MetricsConfig holds the Prometheus exposition settings
type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr"` // Empty disables the metrics endpoint
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	APIKeys map[string]string
}

const (
	// MaxContextWindowChars bounds the previous-section excerpt
	MaxContextWindowChars = 100000
)

// MainModel returns the model used for section drafting
func (c *Config) MainModel() ModelConfig {
	return c.Models["main"]
}

// OutlineModel returns the model used for outline generation, falling back to main
func (c *Config) OutlineModel() ModelConfig {
	if mc, ok := c.Models["outline"]; ok {
		return mc
	}
	return c.Models["main"]
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Generation.ContextWindowChars < 1 {
		return fmt.Errorf("generation.context_window_chars must be at least 1")
	}
	if c.Generation.ContextWindowChars > MaxContextWindowChars {
		return fmt.Errorf("generation.context_window_chars must not exceed %d (got %d)", MaxContextWindowChars, c.Generation.ContextWindowChars)
	}
	if c.Generation.OutputDir == "" {
		return fmt.Errorf("generation.output_dir is required")
	}

	// Enum fields may be empty until the Input phase is complete; when set they must be known
	paper := c.Paper.PaperConfig()
	if c.Paper.Tone != "" && !paper.Tone.Valid() {
		return fmt.Errorf("paper.tone %q is not one of: %s", c.Paper.Tone, models.JoinTones())
	}
	if c.Paper.Template != "" && !paper.Template.Valid() {
		return fmt.Errorf("paper.template %q is not one of: %s", c.Paper.Template, models.JoinTemplates())
	}
	if c.Paper.TargetLength != "" && !paper.TargetLength.Valid() {
		return fmt.Errorf("paper.target_length %q is not one of: %s", c.Paper.TargetLength, models.JoinPaperLengths())
	}

	// Validate main model exists
	mainModel, ok := c.Models["main"]
	if !ok {
		return fmt.Errorf("models.main is required")
	}
	if err := validateModelConfig("main", mainModel); err != nil {
		return err
	}

	if outlineModel, ok := c.Models["outline"]; ok {
		if err := validateModelConfig("outline", outlineModel); err != nil {
			return err
		}
	}

	for name := range c.Models {
		if name != "main" && name != "outline" {
			return fmt.Errorf("models.%s is not recognised (expected main or outline)", name)
		}
	}

	if c.PromptTemplates.OutlineGeneration == "" {
		return fmt.Errorf("prompt_templates.outline_generation is required")
	}
	if c.PromptTemplates.SectionGeneration == "" {
		return fmt.Errorf("prompt_templates.section_generation is required")
	}

	return nil
}

func validateModelConfig(name string, mc ModelConfig) error {
	switch mc.Provider {
	case ProviderHTTP, ProviderOpenAI:
		if mc.BaseURL == "" {
			return fmt.Errorf("models.%s.base_url is required", name)
		}
	case ProviderEcho:
	default:
		return fmt.Errorf("models.%s.provider must be one of: http, openai, echo (got %q)", name, mc.Provider)
	}
	if mc.ModelName == "" {
		return fmt.Errorf("models.%s.model_name is required", name)
	}
	if mc.Temperature < 0 || mc.Temperature > 2 {
		return fmt.Errorf("models.%s.temperature must be between 0 and 2", name)
	}
	if mc.TopP < 0 || mc.TopP > 1 {
		return fmt.Errorf("models.%s.top_p must be between 0 and 1", name)
	}
	if mc.MaxOutputTokens < 1 {
		return fmt.Errorf("models.%s.max_output_tokens must be at least 1", name)
	}
	if mc.ContextSize < 1 {
		return fmt.Errorf("models.%s.context_size must be at least 1", name)
	}
	if mc.RateLimitPerMinute < 1 {
		return fmt.Errorf("models.%s.rate_limit_per_minute must be at least 1", name)
	}
	if mc.MaxOutputTokens > mc.ContextSize {
		return fmt.Errorf("models.%s.max_output_tokens (%d) must not exceed context_size (%d)", name, mc.MaxOutputTokens, mc.ContextSize)
	}
	if mc.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("models.%s.http_timeout_seconds must not be negative", name)
	}
	return nil
}

// providerKeys maps a base URL fragment to the environment variable holding its key
var providerKeys = []struct {
	name    string
	domains []string
	envVar  string
}{
	{"openai", []string{"openai.com"}, "OPENAI_API_KEY"},
	{"gemini", []string{"generativelanguage.googleapis.com"}, "GEMINI_API_KEY"},
	{"openrouter", []string{"openrouter.ai"}, "OPENROUTER_API_KEY"},
	{"nvidia", []string{"nvidia.com"}, "NVIDIA_API_KEY"},
	{"together", []string{"together.xyz", "together.ai"}, "TOGETHER_API_KEY"},
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{
		APIKeys: make(map[string]string),
	}

	// Load generic API key (provider-agnostic)
	if key := os.Getenv("API_KEY"); key != "" {
		secrets.APIKeys["generic"] = key
	}

	// Provider-specific keys override the generic one
	for _, p := range providerKeys {
		if key := os.Getenv(p.envVar); key != "" {
			secrets.APIKeys[p.name] = key
		}
	}

	return secrets, nil
}

// GetAPIKey returns the API key for a given base URL
func (s *Secrets) GetAPIKey(baseURL string) string {
	if name := GetProviderName(baseURL); name != baseURL {
		if key := s.APIKeys[name]; key != "" {
			return key
		}
	}

	// Fall back to generic API_KEY for any OpenAI-compatible provider
	if key := s.APIKeys["generic"]; key != "" {
		return key
	}

	// If no key found, return empty (could be local server without auth)
	return ""
}

// GetProviderName extracts a provider name from a base URL for rate limiting and metrics
func GetProviderName(baseURL string) string {
	for _, p := range providerKeys {
		for _, domain := range p.domains {
			if strings.Contains(baseURL, domain) {
				return p.name
			}
		}
	}
	// For localhost or unknown providers, use the full base URL as provider name
	return baseURL
}
