// Package preflight provides readiness checks for the directories and
// external endpoints the pipeline depends on. The run command executes
// RunAll at startup and logs failures before the daemon begins claiming
// work, so a misconfigured endpoint surfaces immediately instead of on
// the first upload hours into a preprocessing run.
package preflight
