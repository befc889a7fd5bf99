package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrDomainResolution is returned when a configured URL has no extractable host.
	ErrDomainResolution = errors.New("cannot resolve domain")
	// ErrInvalidPattern is returned when a delete-param pattern does not compile.
	ErrInvalidPattern = errors.New("invalid query parameter pattern")
	// ErrNoSeeds is returned when the engine is started without seed URLs.
	ErrNoSeeds = errors.New("no links to check")
)

// ConfigError reports a fatal startup problem tied to a configuration field.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

// Error implements error.
func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config %s %q: %v", e.Field, e.Value, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(field, value string, err error) error {
	return &ConfigError{Field: field, Value: value, Err: err}
}
