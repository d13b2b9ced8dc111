package analysis

import (
	"errors"
	"fmt"
)

// ErrCancelled marks cooperative cancellation; partially reported jobs
// stay in their last state.
var ErrCancelled = errors.New("analysis cancelled")

// ExtractionError means the model output could not be decoded into a
// Recommendation. Raw carries the full text for diagnostics.
type ExtractionError struct {
	Raw string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract recommendation: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ConfigError is raised at orchestrator construction, before any
// network call: unsupported provider/strategy pairing, missing
// credential, and so on.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("analysis config: %s: %s", e.Field, e.Reason)
}
