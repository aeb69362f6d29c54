package cli

import "fmt"

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// RenderError represents a failed document render in a batch.
type RenderError struct {
	Input   string
	Message string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s failed: %s", e.Input, e.Message)
}

// NewRenderError creates a new RenderError.
func NewRenderError(input, message string) *RenderError {
	return &RenderError{Input: input, Message: message}
}
