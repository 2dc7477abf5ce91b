// Package config loads and persists director configuration. Config lives in
// .director/config.yaml; environment variables override credentials so keys
// stay out of the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"director/internal/filter"
)

// StateDirName is the workspace state directory.
const StateDirName = ".director"

// Config holds all director configuration.
type Config struct {
	// LLM configuration for the guidance model
	LLM LLMConfig `yaml:"llm"`

	// Chat configuration for the host conversation
	Chat ChatConfig `yaml:"chat"`

	// Director round behavior
	Director DirectorConfig `yaml:"director"`

	// Outgoing text filters
	Filters []filter.Rule `yaml:"filters"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures how guidance requests reach a vendor.
type LLMConfig struct {
	Transport   string  `yaml:"transport"` // proxy, direct
	Vendor      string  `yaml:"vendor"`    // openai, claude
	Model       string  `yaml:"model"`
	Endpoint    string  `yaml:"endpoint"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`
	Stream      bool    `yaml:"stream"`
}

// ChatConfig configures the host conversation.
type ChatConfig struct {
	UserName      string `yaml:"user_name"`
	AssistantName string `yaml:"assistant_name"`
	SystemPrompt  string `yaml:"system_prompt"`
	Model         string `yaml:"model"` // empty = same as llm.model
}

// DirectorConfig configures the round state machine.
type DirectorConfig struct {
	Enabled       bool   `yaml:"enabled"`
	TotalRounds   int    `yaml:"total_rounds"`
	ContextLength int    `yaml:"context_length"` // recent turns fed to the assembler
	ReviewMode    bool   `yaml:"review_mode"`
	WaitForHost   bool   `yaml:"wait_for_host"`
	WaitStart     string `yaml:"wait_start"`  // how long to wait for host generation to begin
	WaitFinish    string `yaml:"wait_finish"` // how long to wait for it to end

	Outline OutlineConfig `yaml:"outline"`
}

// OutlineConfig carries the plot outline and its two injection windows. The
// windows are independent: one gates the outline inside the guidance
// prompt, the other gates prepending it to the injected direction text.
type OutlineConfig struct {
	Text           string `yaml:"text"`
	PromptRounds   int    `yaml:"prompt_rounds"`   // 0 = every round
	OutgoingRounds int    `yaml:"outgoing_rounds"` // 0 = every round
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Transport:   "direct",
			Vendor:      "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   1024,
			Timeout:     "120s",
			Stream:      true,
		},

		Chat: ChatConfig{
			UserName:      "You",
			AssistantName: "Assistant",
		},

		Director: DirectorConfig{
			TotalRounds:   5,
			ContextLength: 20,
			WaitForHost:   true,
			WaitStart:     "2s",
			WaitFinish:    "90s",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Path returns the config file location under the workspace state dir.
func Path(workspace string) string {
	return filepath.Join(workspace, StateDirName, "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("DIRECTOR_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("DIRECTOR_PROXY_URL"); url != "" {
		c.LLM.Endpoint = url
		c.LLM.Transport = "proxy"
	}
}

// LLMTimeout returns the guidance call timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// WaitStart returns the readiness start-detection window.
func (c *Config) WaitStart() time.Duration {
	return parseDuration(c.Director.WaitStart, 2*time.Second)
}

// WaitFinish returns the readiness finish-detection window.
func (c *Config) WaitFinish() time.Duration {
	return parseDuration(c.Director.WaitFinish, 90*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
