package provider

import "errors"

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrProviderTimeout     = errors.New("ai provider request timed out")
	ErrProviderRejected    = errors.New("ai provider rejected request")
	ErrMissingCredentials  = errors.New("ai provider credentials not configured")
	ErrUnknownModel        = errors.New("unknown or inactive model")
)
