// Package config loads, normalizes, and validates Binder configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BINDER_NTFY_TOPIC. The Config type centralizes every knob the agent and CLI
// need, allowing session/report directories and Excel automation behavior to
// be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
