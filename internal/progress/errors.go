package progress

import "errors"

var (
	// ErrUnauthorized is returned when an operation needs an identity and has none.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation is returned for missing or malformed request fields.
	ErrValidation = errors.New("validation failed")
	// ErrTopicNotFound is returned when the topic ID does not resolve in the catalog.
	ErrTopicNotFound = errors.New("topic not found")
	// ErrModuleNotInTopic is returned in strict mode when the module is not part of the topic.
	ErrModuleNotInTopic = errors.New("module not in topic")
	// ErrRecordNotFound is returned when a user has no progress record yet.
	ErrRecordNotFound = errors.New("progress record not found")
	// ErrStoreUnavailable wraps failures reaching the backing store.
	ErrStoreUnavailable = errors.New("progress store unavailable")
	// ErrConflict is returned when a save lost a race against another writer.
	ErrConflict = errors.New("progress record was modified concurrently")
)
