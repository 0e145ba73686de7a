package domain

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrNoRecipient is returned before any record is persisted when neither an
	// explicit recipient nor a stored contact address is available.
	ErrNoRecipient = errors.New("no recipient resolvable")

	// ErrMissingTemplate is returned when no template and no raw message
	// fallback can render a notification.
	ErrMissingTemplate = errors.New("missing template")

	// ErrUnsupportedChannel marks a channel that cannot be served: either the
	// template has no rendering for it or no sender is configured for it.
	ErrUnsupportedChannel = errors.New("unsupported channel")
)
