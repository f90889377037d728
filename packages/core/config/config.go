package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the xcrunner configuration
type Config struct {
	ProjectPath        string        `json:"projectPath,omitempty" yaml:"projectPath,omitempty"`
	Destination        string        `json:"destination,omitempty" yaml:"destination,omitempty"`
	StopOnFirstFailure *bool         `json:"stopOnFirstFailure,omitempty" yaml:"stopOnFirstFailure,omitempty"`
	ScratchRoot        string        `json:"scratchRoot,omitempty" yaml:"scratchRoot,omitempty"`         // Parent of per-run scratch directories
	ExtractResults     *bool         `json:"extractResults,omitempty" yaml:"extractResults,omitempty"`   // Read result bundles after each unit
	LegacyResultQuery  *bool         `json:"legacyResultQuery,omitempty" yaml:"legacyResultQuery,omitempty"`
	PTYPrograms        []string      `json:"ptyPrograms,omitempty" yaml:"ptyPrograms,omitempty"`         // Programs run under script(1)
	History            *bool         `json:"history,omitempty" yaml:"history,omitempty"`
	HistoryDB          string        `json:"historyDB,omitempty" yaml:"historyDB,omitempty"`
	RetainLastRuns     int           `json:"retainLastRuns,omitempty" yaml:"retainLastRuns,omitempty"`
	AfterUnit          string        `json:"afterUnit,omitempty" yaml:"afterUnit,omitempty"`             // Shell command run after each unit
	Output             string        `json:"output,omitempty" yaml:"output,omitempty"`
	Verbose            *bool         `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor            *bool         `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	Notify             *NotifyConfig `json:"notify,omitempty" yaml:"notify,omitempty"`
}

// NotifyConfig configures completion notifications
type NotifyConfig struct {
	On           string `json:"on,omitempty" yaml:"on,omitempty"`
	SlackWebhook string `json:"slackWebhook,omitempty" yaml:"slackWebhook,omitempty"`
	SlackChannel string `json:"slackChannel,omitempty" yaml:"slackChannel,omitempty"`
	TeamsWebhook string `json:"teamsWebhook,omitempty" yaml:"teamsWebhook,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetStopOnFirstFailure returns the stop-on-first-failure setting, defaulting to false
func (c *Config) GetStopOnFirstFailure() bool {
	return getBool(c.StopOnFirstFailure, false)
}

// GetExtractResults returns whether result bundles are read, defaulting to true
func (c *Config) GetExtractResults() bool {
	return getBool(c.ExtractResults, true)
}

// GetLegacyResultQuery returns whether xcresulttool needs --legacy, defaulting to false
func (c *Config) GetLegacyResultQuery() bool {
	return getBool(c.LegacyResultQuery, false)
}

// GetHistory returns whether runs are recorded, defaulting to true
func (c *Config) GetHistory() bool {
	return getBool(c.History, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// NotifySettings returns the notify block, never nil
func (c *Config) NotifySettings() NotifyConfig {
	if c.Notify == nil {
		return NotifyConfig{}
	}
	return *c.Notify
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".xcrunner.json",
	"xcrunner.json",
	".xcrunner.yaml",
	".xcrunner.yml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	// Search for config file in current directory
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

// Validate checks values that cannot be checked by the decoder
func (c *Config) Validate() error {
	if c.RetainLastRuns < 0 {
		return fmt.Errorf("retainLastRuns must not be negative, got %d", c.RetainLastRuns)
	}
	if c.Notify != nil && c.Notify.On != "" {
		switch c.Notify.On {
		case "always", "failure", "success", "recovery":
		default:
			return fmt.Errorf("notify.on must be always, failure, success or recovery, got %q", c.Notify.On)
		}
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.ProjectPath != "" {
		result.ProjectPath = other.ProjectPath
	}
	if other.Destination != "" {
		result.Destination = other.Destination
	}
	if other.ScratchRoot != "" {
		result.ScratchRoot = other.ScratchRoot
	}
	if other.HistoryDB != "" {
		result.HistoryDB = other.HistoryDB
	}
	if other.RetainLastRuns > 0 {
		result.RetainLastRuns = other.RetainLastRuns
	}
	if other.AfterUnit != "" {
		result.AfterUnit = other.AfterUnit
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if len(other.PTYPrograms) > 0 {
		result.PTYPrograms = other.PTYPrograms
	}

	// Boolean flags - only override if explicitly set in other config
	if other.StopOnFirstFailure != nil {
		result.StopOnFirstFailure = other.StopOnFirstFailure
	}
	if other.ExtractResults != nil {
		result.ExtractResults = other.ExtractResults
	}
	if other.LegacyResultQuery != nil {
		result.LegacyResultQuery = other.LegacyResultQuery
	}
	if other.History != nil {
		result.History = other.History
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Merge notify settings field by field
	if other.Notify != nil {
		merged := result.NotifySettings()
		if other.Notify.On != "" {
			merged.On = other.Notify.On
		}
		if other.Notify.SlackWebhook != "" {
			merged.SlackWebhook = other.Notify.SlackWebhook
		}
		if other.Notify.SlackChannel != "" {
			merged.SlackChannel = other.Notify.SlackChannel
		}
		if other.Notify.TeamsWebhook != "" {
			merged.TeamsWebhook = other.Notify.TeamsWebhook
		}
		result.Notify = &merged
	}

	return &result
}

// SaveConfig saves the configuration to a file, as YAML or JSON by extension
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
