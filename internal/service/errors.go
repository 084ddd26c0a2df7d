package service

import (
	"errors"
	"fmt"
)

// ErrCityNotSupported means the requested city is not in the fixed table.
var ErrCityNotSupported = errors.New("city not supported")

// RateLimitExceededError carries the configured limit and the observed
// post-increment count for the rejected request.
type RateLimitExceededError struct {
	Limit int
	Count int
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d of %d per minute", e.Count, e.Limit)
}

// ProviderFailureError means the provider call could not be completed and
// no cache fallback entry existed.
type ProviderFailureError struct {
	Err error
}

func (e *ProviderFailureError) Error() string {
	return fmt.Sprintf("provider failed: %v", e.Err)
}

func (e *ProviderFailureError) Unwrap() error {
	return e.Err
}
