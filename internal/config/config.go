package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models coopline.yml: the co-op eligibility policy plus outbound
// notification webhooks. The config is imported into the database and read
// back from there at runtime.
type Config struct {
	Program struct {
		ID string `yaml:"id" json:"id"`
	} `yaml:"program" json:"program"`
	Eligibility EligibilityPolicy `yaml:"eligibility" json:"eligibility"`
	Webhooks    []WebhookConfig   `yaml:"webhooks" json:"webhooks,omitempty"`
}

// EligibilityPolicy holds the inclusive thresholds the evaluator applies at
// selection time.
type EligibilityPolicy struct {
	MinGPA                 float64 `yaml:"min_gpa" json:"min_gpa"`
	MinWeeks               int     `yaml:"min_weeks" json:"min_weeks"`
	MinTotalHours          int     `yaml:"min_total_hours" json:"min_total_hours"`
	MinSemesters           int     `yaml:"min_semesters" json:"min_semesters"`
	MinSemestersIfTransfer int     `yaml:"min_semesters_if_transfer" json:"min_semesters_if_transfer"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events,omitempty" json:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty" json:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with coop program config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the policy is present and never weaker than zero.
func (c *Config) Validate() error {
	if c.Program.ID == "" {
		return fmt.Errorf("config.program.id is required")
	}
	if c.Eligibility.MinGPA < 0 || c.Eligibility.MinGPA > 4.0 {
		return fmt.Errorf("config.eligibility.min_gpa must be within 0.0-4.0")
	}
	if c.Eligibility.MinWeeks <= 0 {
		return fmt.Errorf("config.eligibility.min_weeks must be positive")
	}
	if c.Eligibility.MinTotalHours <= 0 {
		return fmt.Errorf("config.eligibility.min_total_hours must be positive")
	}
	if c.Eligibility.MinSemesters < 0 || c.Eligibility.MinSemestersIfTransfer < 0 {
		return fmt.Errorf("config.eligibility semester thresholds cannot be negative")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds cannot be negative", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "coopline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(programID string) string {
	return fmt.Sprintf(defaultTemplate, programID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a program.
func Default(programID string) *Config {
	var cfg Config
	cfg.Program.ID = programID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, programID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `program:
  id: %s

eligibility:
  min_gpa: 2.0
  min_weeks: 7
  min_total_hours: 140
  min_semesters: 2
  min_semesters_if_transfer: 1

webhooks: []
`
