// Package config loads, validates, and normalizes engine configuration from
// TOML files.
//
// Configuration is always passed explicitly into constructors; there is no
// process-wide mutable default. Load resolves the config path (explicit flag,
// then ~/.config/meeple/config.toml, then ./meeple.toml), merges the file over
// Default(), expands ~ in path fields, and validates ranges before returning.
package config
