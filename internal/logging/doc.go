// Package logging assembles structured slog loggers and formatting helpers used
// across the CLI and the agent.
//
// Two output formats are supported: a console format rendered as
// "ts LEVEL component: msg key=value" for interactive use and log files, and a
// JSON format with ts/level/msg key names for ingestion. The package also
// carries the standardized field-name constants, context-derived attribute
// extraction, and retention sweeps for timestamped agent logs.
package logging
