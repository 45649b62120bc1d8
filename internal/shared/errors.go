package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Provider errors
	ErrCredential         = fmt.Errorf("credential exchange failed")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("not found")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Pipeline errors
	ErrWrite      = fmt.Errorf("catalog write failed")
	ErrRunActive  = fmt.Errorf("an ingest run is already active")
	ErrRunFailed  = fmt.Errorf("every strategy failed")
	ErrValidation = fmt.Errorf("validation failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrUnauthorized    = fmt.Errorf("unauthorized")
)

// CredentialError reports a failed token exchange against a provider.
// It is fatal to the fetch that needed the token, not to the run.
type CredentialError struct {
	Provider string
	Err      error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCredential, e.Provider, e.Err)
}

func (e *CredentialError) Unwrap() []error {
	return []error{ErrCredential, e.Err}
}

// FetchError reports a provider call that failed after retries.
type FetchError struct {
	Provider string
	URL      string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s %s: status %d: %v", ErrAPIRequest, e.Provider, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", ErrAPIRequest, e.Provider, e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrAPIRequest, e.Err}
}

// WriteError reports a single failed upsert. The writer logs it and moves on.
type WriteError struct {
	Entity string
	Key    string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %s %q: %v", ErrWrite, e.Entity, e.Key, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrWrite, e.Err}
}

// IsCredentialError reports whether err carries a [CredentialError].
func IsCredentialError(err error) bool {
	var ce *CredentialError
	return errors.As(err, &ce)
}
