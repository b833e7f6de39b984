// Package jobs implements the AI job lifecycle: submission to the provider,
// callback handling, and reconciliation of jobs whose callback never came.
package jobs

import "errors"

var (
	// ErrConfiguration means the provider cannot be called at all (missing
	// credentials). It is an operator problem, not a caller problem.
	ErrConfiguration = errors.New("provider is not configured")

	ErrUnknownModel            = errors.New("unknown or inactive model")
	ErrOrganizationNotResolved = errors.New("organization could not be resolved")
	ErrInvalidRequest          = errors.New("invalid job request")

	// ErrProviderSubmit is recorded on jobs the provider refused or that
	// could not be handed over. It is never returned to callers as an error.
	ErrProviderSubmit = errors.New("provider submission failed")

	// ErrProviderTimeout prefixes the message of jobs the sweeper gives up on.
	ErrProviderTimeout = errors.New("timed out")

	// ErrAmbiguousPayload is logged when a provider payload is neither
	// success nor failure.
	ErrAmbiguousPayload = errors.New("ambiguous provider payload")

	ErrUnauthorized    = errors.New("invalid callback token")
	ErrMissingTaskID   = errors.New("callback payload has no task id")
	ErrInvalidPayload  = errors.New("callback payload is not valid JSON")
	ErrJobNotFound     = errors.New("job not found")
	ErrAlreadyTerminal = errors.New("job is already in a terminal status")
)
