package stream

import "fmt"

// ConfigError reports a StreamDescriptor that violates the data model's
// invariants.
type ConfigError struct {
	Stream string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("stream %q: %s", e.Stream, e.Reason)
}

func newConfigError(stream, reason string) *ConfigError {
	return &ConfigError{Stream: stream, Reason: reason}
}
