// Package generation holds the shared error types of the third-party generation clients.
package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrPromptRequired is returned before any network call when the input text is empty.
	ErrPromptRequired = errors.New("prompt is required")
	// ErrNotConfigured is returned when a provider has no API key.
	ErrNotConfigured = errors.New("provider is not configured")
)

// UpstreamError reports a non-2xx response from a provider.
type UpstreamError struct {
	Service     string
	StatusCode  int
	ContentType string
	Body        []byte
}

func (e *UpstreamError) Error() string {
	body := string(e.Body)
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("%s upstream returned %d: %s", e.Service, e.StatusCode, body)
}

// AsUpstream unwraps err into an UpstreamError.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
