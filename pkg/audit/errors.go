package audit

import "errors"

var (
	// ErrUnknownEntityType is returned when no policy was configured for an entity type
	ErrUnknownEntityType = errors.New("audit: entity type not configured")

	// ErrNilCycle is returned by post-event hooks called without a pre-save cycle
	ErrNilCycle = errors.New("audit: no pre-save cycle")

	// ErrInvalidPolicy is returned when a policy definition cannot be loaded
	ErrInvalidPolicy = errors.New("audit: invalid policy")

	// ErrUnsupportedFormat is returned for unknown export formats
	ErrUnsupportedFormat = errors.New("audit: unsupported export format")
)
