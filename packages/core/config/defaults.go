package config

// DefaultRetainLastRuns is how many runs history keeps unless configured
const DefaultRetainLastRuns = 50

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		RetainLastRuns: DefaultRetainLastRuns,
		Output:         "console",
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.ProjectPath == defaults.ProjectPath &&
		c.Destination == defaults.Destination &&
		c.ScratchRoot == defaults.ScratchRoot &&
		c.HistoryDB == defaults.HistoryDB &&
		c.RetainLastRuns == defaults.RetainLastRuns &&
		c.AfterUnit == defaults.AfterUnit &&
		c.Output == defaults.Output &&
		len(c.PTYPrograms) == 0 &&
		c.GetStopOnFirstFailure() == defaults.GetStopOnFirstFailure() &&
		c.GetExtractResults() == defaults.GetExtractResults() &&
		c.GetLegacyResultQuery() == defaults.GetLegacyResultQuery() &&
		c.GetHistory() == defaults.GetHistory() &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor() &&
		c.Notify == nil
}
