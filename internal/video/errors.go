package video

import "errors"

// Sentinel errors returned by stores and job transitions.
var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobExists         = errors.New("job already exists")
	ErrInvalidTransition = errors.New("invalid job transition")
	ErrPromptRequired    = errors.New("prompt required")
)
