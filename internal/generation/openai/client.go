// Package openai calls the OpenAI text-to-speech API.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/bossmind/videomaker/internal/generation"
	"github.com/bossmind/videomaker/internal/metrics"
)

// Service labels this provider in errors and metrics.
const Service = "openai"

// MaxInputRunes is the longest text the speech endpoint accepts.
const MaxInputRunes = 4096

// ErrTextTooLong is returned for inputs over MaxInputRunes.
var ErrTextTooLong = fmt.Errorf("text exceeds %d characters", MaxInputRunes)

// Config configures the Client.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	DefaultVoice string
	Format       string
	// Voices maps a language code to its preferred voice.
	Voices  map[string]string
	Timeout time.Duration
}

// SpeechRequest is the caller-facing request body.
type SpeechRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Voice    string `json:"voice"`
}

// Audio is a synthesized clip.
type Audio struct {
	Data        []byte
	ContentType string
	Voice       string
	Model       string
}

type speechBody struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Client talks to the OpenAI audio API.
type Client struct {
	http *resty.Client
	cfg  Config
}

// New builds a Client with defaults for unset fields.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "tts-1"
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "alloy"
	}
	if cfg.Format == "" {
		cfg.Format = "mp3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)
	return &Client{http: client, cfg: cfg}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// VoiceFor picks the request voice, then the language default, then the configured default.
func (c *Client) VoiceFor(req SpeechRequest) string {
	if v := strings.TrimSpace(req.Voice); v != "" {
		return v
	}
	if v := c.cfg.Voices[strings.ToLower(strings.TrimSpace(req.Language))]; v != "" {
		return v
	}
	return c.cfg.DefaultVoice
}

// Synthesize converts text to speech. Empty text never reaches upstream.
func (c *Client) Synthesize(ctx context.Context, req SpeechRequest) (Audio, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Audio{}, generation.ErrPromptRequired
	}
	if utf8.RuneCountInString(text) > MaxInputRunes {
		return Audio{}, ErrTextTooLong
	}
	if !c.Configured() {
		return Audio{}, fmt.Errorf("%s: %w", Service, generation.ErrNotConfigured)
	}

	voice := c.VoiceFor(req)
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(speechBody{
			Model:          c.cfg.Model,
			Input:          text,
			Voice:          voice,
			ResponseFormat: c.cfg.Format,
		}).
		Post("/v1/audio/speech")
	if err != nil {
		metrics.ObserveUpstream(Service, 0)
		return Audio{}, fmt.Errorf("openai request: %w", err)
	}
	metrics.ObserveUpstream(Service, resp.StatusCode())
	if resp.IsError() {
		return Audio{}, &generation.UpstreamError{
			Service:     Service,
			StatusCode:  resp.StatusCode(),
			ContentType: resp.Header().Get("Content-Type"),
			Body:        resp.Body(),
		}
	}

	ct := resp.Header().Get("Content-Type")
	if ct == "" {
		ct = contentType(c.cfg.Format)
	}
	return Audio{Data: resp.Body(), ContentType: ct, Voice: voice, Model: c.cfg.Model}, nil
}

// Extension returns the file extension of the configured output format.
func (c *Client) Extension() string {
	return c.cfg.Format
}

func contentType(format string) string {
	switch format {
	case "opus":
		return "audio/ogg"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	case "wav":
		return "audio/wav"
	default:
		return "audio/mpeg"
	}
}
