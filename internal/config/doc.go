// Package config loads, normalizes, and validates imagewatch configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// daemon and CLI need: persisted document locations, search terms and
// exclusions, matching thresholds, webhook credentials, and rechecker tuning.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
