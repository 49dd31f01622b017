package config

import (
	"fmt"
	"time"
)

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult collects every problem found so operators can fix them
// in one pass.
type ValidationResult struct {
	Errors []ValidationError
}

func (r *ValidationResult) addError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Validate checks the loaded configuration for internally inconsistent or
// out-of-range settings.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	if c.Queue.MaxRetries < 1 {
		result.addError("QUEUE_MAX_RETRIES", "must be at least 1")
	}
	if c.Queue.RetryBaseDelay <= 0 {
		result.addError("QUEUE_RETRY_BASE_DELAY", "must be a positive duration")
	}
	if c.Connectivity.ProbeInterval < time.Second {
		result.addError("CONNECTIVITY_PROBE_INTERVAL", "must be at least 1s")
	}
	if c.Connectivity.ProbeTimeout <= 0 {
		result.addError("CONNECTIVITY_PROBE_TIMEOUT", "must be a positive duration")
	}
	if c.Watch.Mode != WatchModeLocal && c.Watch.Mode != WatchModeRemote {
		result.addError("WATCH_MODE", "must be \"local\" or \"remote\"")
	}
	if c.Watch.Mode == WatchModeRemote && c.Watch.RemoteFeedURL == "" {
		result.addError("WATCH_REMOTE_FEED_URL", "required when WATCH_MODE is \"remote\"")
	}
	if c.API.BaseURL == "" {
		result.addError("TRADE_API_URL", "must not be empty")
	}

	return result
}
