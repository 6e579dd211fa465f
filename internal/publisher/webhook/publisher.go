// Package webhook relays job notifications to an HTTP hook such as a Make.com scenario.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config configures the webhook publisher.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Publisher POSTs each payload as JSON to the configured URL.
type Publisher struct {
	client *resty.Client
	url    string
}

// New validates cfg and builds a Publisher.
func New(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Publisher{client: client, url: cfg.URL}, nil
}

// Publish sends payload with the topic in the X-Videomaker-Topic header.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("X-Videomaker-Topic", topic).
		SetBody(payload).
		Post(p.url)
	if err != nil {
		return "", fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("webhook returned %d: %s", resp.StatusCode(), resp.String())
	}
	return fmt.Sprintf("webhook-%d", resp.StatusCode()), nil
}

