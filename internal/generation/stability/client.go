// Package stability calls the Stability AI text-to-image API.
package stability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bossmind/videomaker/internal/generation"
	"github.com/bossmind/videomaker/internal/metrics"
)

// Service labels this provider in errors and metrics.
const Service = "stability"

// Parameter bounds applied by ImageRequest.Normalize.
const (
	MinDimension     = 512
	MaxDimension     = 1536
	DefaultDimension = 1024
	MinSteps         = 10
	MaxSteps         = 50
	DefaultSteps     = 30
	MaxCFGScale      = 35
	DefaultCFGScale  = 7
	MaxSamples       = 4
)

// Config configures the Client.
type Config struct {
	APIKey  string
	BaseURL string
	Engine  string
	Timeout time.Duration
}

// ImageRequest is the caller-facing request body.
type ImageRequest struct {
	Prompt   string   `json:"prompt"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Steps    int      `json:"steps"`
	CFGScale *float64 `json:"cfg_scale"`
	Samples  int      `json:"samples"`
}

// Normalize trims the prompt and clamps every numeric parameter into range,
// substituting defaults for unset values.
func (r ImageRequest) Normalize() ImageRequest {
	out := r
	out.Prompt = strings.TrimSpace(r.Prompt)
	out.Width = dimension(r.Width)
	out.Height = dimension(r.Height)
	if out.Steps == 0 {
		out.Steps = DefaultSteps
	}
	out.Steps = clamp(out.Steps, MinSteps, MaxSteps)
	cfg := float64(DefaultCFGScale)
	if r.CFGScale != nil {
		cfg = min(max(*r.CFGScale, 0), MaxCFGScale)
	}
	out.CFGScale = &cfg
	if out.Samples == 0 {
		out.Samples = 1
	}
	out.Samples = clamp(out.Samples, 1, MaxSamples)
	return out
}

func dimension(v int) int {
	if v == 0 {
		return DefaultDimension
	}
	v = clamp(v, MinDimension, MaxDimension)
	return v / 64 * 64
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// Image is one generated artifact.
type Image struct {
	Base64       string `json:"base64"`
	Seed         int64  `json:"seed"`
	FinishReason string `json:"finishReason"`
}

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type generateBody struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CFGScale    float64      `json:"cfg_scale"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Steps       int          `json:"steps"`
	Samples     int          `json:"samples"`
}

type generateResponse struct {
	Artifacts []Image `json:"artifacts"`
}

// Client talks to the Stability REST API.
type Client struct {
	http   *resty.Client
	engine string
	apiKey string
}

// New builds a Client. A missing API key is reported by Generate, not here,
// so the rest of the service can run without it.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stability.ai"
	}
	if cfg.Engine == "" {
		cfg.Engine = "stable-diffusion-xl-1024-v1-0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: client, engine: cfg.Engine, apiKey: cfg.APIKey}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Generate normalizes req and requests images. It never calls upstream for
// an empty prompt.
func (c *Client) Generate(ctx context.Context, req ImageRequest) ([]Image, error) {
	req = req.Normalize()
	if req.Prompt == "" {
		return nil, generation.ErrPromptRequired
	}
	if !c.Configured() {
		return nil, fmt.Errorf("%s: %w", Service, generation.ErrNotConfigured)
	}

	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(generateBody{
			TextPrompts: []textPrompt{{Text: req.Prompt, Weight: 1}},
			CFGScale:    *req.CFGScale,
			Height:      req.Height,
			Width:       req.Width,
			Steps:       req.Steps,
			Samples:     req.Samples,
		}).
		SetResult(&out).
		Post(fmt.Sprintf("/v1/generation/%s/text-to-image", c.engine))
	if err != nil {
		metrics.ObserveUpstream(Service, 0)
		return nil, fmt.Errorf("stability request: %w", err)
	}
	metrics.ObserveUpstream(Service, resp.StatusCode())
	if resp.IsError() {
		return nil, &generation.UpstreamError{
			Service:     Service,
			StatusCode:  resp.StatusCode(),
			ContentType: resp.Header().Get("Content-Type"),
			Body:        resp.Body(),
		}
	}
	if len(out.Artifacts) == 0 {
		return nil, errors.New("stability response carried no artifacts")
	}
	return out.Artifacts, nil
}
