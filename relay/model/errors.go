package model

import "fmt"

// ValidationError reports a malformed content block. It is surfaced before
// any provider call is attempted and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnsupportedContentError reports a content variant that has no composition
// rule.
type UnsupportedContentError struct {
	ContentType string
}

func (e *UnsupportedContentError) Error() string {
	return fmt.Sprintf("unsupported content type %q", e.ContentType)
}

// ConfigurationError reports a deployment or configuration bug: an unmapped
// model alias, a missing default pricing tier, an unsupported embedding
// model. Callers should abort loudly instead of defaulting silently.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %q: %s", e.Key, e.Reason)
}
