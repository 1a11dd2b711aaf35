// Package telemetry reads raw turbine sensor dumps: gzipped CSV files with
// device identifiers, timestamps, and the raw sensor channels. Column order
// is header-driven and malformed numeric cells surface as NaN so downstream
// windowing can zero them per its own policy.
package telemetry
