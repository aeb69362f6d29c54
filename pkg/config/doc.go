// Package config defines the YAML configuration model for the rendering
// service, with defaults, validation, environment-variable overrides, and
// optional file watching for live reload.
package config
