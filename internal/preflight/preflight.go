package preflight

import (
	"context"

	"windsentry/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks gated by optional configuration are skipped when unconfigured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.Paths.IncomingDir != "" {
		results = append(results, CheckDirectoryAccess("Incoming directory", cfg.Paths.IncomingDir))
	}

	results = append(results, CheckObjectStorage(ctx, cfg))
	results = append(results, CheckCloudConfig(cfg))
	results = append(results, CheckNotificationBroker(ctx, cfg))

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
