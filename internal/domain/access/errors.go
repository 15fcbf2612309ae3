package access

import "errors"

var (
	// ErrInvalidRequest indicates caller input validation errors.
	ErrInvalidRequest = errors.New("access: invalid request")
	// ErrInvalidState indicates an undecodable or uid-less OAuth state value.
	ErrInvalidState = errors.New("access: invalid state")
	// ErrProviderNotFound signals an unknown provider identifier.
	ErrProviderNotFound = errors.New("access: provider not found")
	// ErrNotConfigured signals missing provider client credentials; a
	// deployment defect, distinct from upstream rejections.
	ErrNotConfigured = errors.New("access: provider not configured")
)
