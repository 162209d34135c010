// Package config loads, normalizes, and validates SignScribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a working-directory .env file, and
// honours environment fallbacks such as SIGNSCRIBE_JWT_SECRET. The Config type
// centralizes every knob the daemon and CLI need: document store location,
// capture cadence, prediction window, token lifetimes and snapshot settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
