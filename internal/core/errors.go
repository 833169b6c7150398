package core

import "errors"

// Shared failure taxonomy. Handlers report these back to the originating
// connection only; none of them crash the process. Worker death is the one
// fatal case and is handled by the worker pool, not through these values.
var (
	ErrAuthFailed         = errors.New("authentication failed")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrCapabilityMismatch = errors.New("capabilities cannot consume producer")
	ErrEngineFailure      = errors.New("media engine failure")
	ErrTimeout            = errors.New("media engine call timed out")
)
