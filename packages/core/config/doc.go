// Package config handles configuration loading and management for xcrunner.
//
// It provides functionality for:
//   - Loading configuration from .xcrunner.json or .xcrunner.yaml files
//   - Default configuration values
//   - Merging a file config with command-line overrides
package config
