package backfill

import (
	appconfig "github.com/smallbiznis/creditcore/internal/config"
)

// Config controls the ledger backfill run.
type Config struct {
	OrganizationID    string
	BatchSize         int
	ThreadCount       int
	DryRun            bool
	IncludeTerminated bool
	OutputFile        string
}

// DefaultConfig is the safe default: validate everything, write nothing.
func DefaultConfig() Config {
	return Config{
		BatchSize:   100,
		ThreadCount: 4,
		DryRun:      true,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.ThreadCount <= 0 {
		c.ThreadCount = defaults.ThreadCount
	}
	return c
}

// FromAppConfig maps the application configuration onto a run config.
func FromAppConfig(cfg appconfig.Config) Config {
	return Config{
		OrganizationID:    cfg.Backfill.OrganizationID,
		BatchSize:         cfg.Backfill.BatchSize,
		ThreadCount:       cfg.Backfill.ThreadCount,
		DryRun:            cfg.Backfill.DryRun,
		IncludeTerminated: cfg.Backfill.IncludeTerminated,
		OutputFile:        cfg.Backfill.OutputFile,
	}
}
