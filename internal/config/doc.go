// Package config loads, normalizes, and validates framewright configuration.
//
// Configuration is read from TOML (go-toml/v2), merged over Default(), then
// normalized: paths are expanded, credentials fall back to environment
// variables (optionally seeded from a local .env file), and numeric knobs are
// clamped to usable values. Validate reports structural problems; credentials
// are checked separately by ValidateCredentials so read-only commands work
// without API keys.
package config
