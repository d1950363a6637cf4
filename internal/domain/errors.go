package domain

import "fmt"

// GenerationError reports a failed language-model completion of any kind:
// transport, quota, timeout or malformed response.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation (%s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// RetrievalError reports a failed similarity search.
type RetrievalError struct {
	Backend string
	Err     error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval (%s): %v", e.Backend, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// ConfigurationError reports missing or invalid settings or credentials for a
// component. It is fatal at construction time and never retried.
type ConfigurationError struct {
	Component string
	Err       error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration (%s): %v", e.Component, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
