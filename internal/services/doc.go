// Package services holds shared plumbing for windsentry's external
// collaborators: error classification markers used to route stage failures,
// and context annotations that tag logs with item, stage, and correlation
// identifiers. Concrete clients live in subpackages.
package services
