// Package config loads and validates videomaker configuration via Viper.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key when read from the environment.
const EnvPrefix = "VIDEOMAKER"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Languages LanguageConfig  `mapstructure:"languages"`
	Stability StabilityConfig `mapstructure:"stability"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ServiceName     string        `mapstructure:"service_name"`
	Version         string        `mapstructure:"version"`
	StaticDir       string        `mapstructure:"static_dir"`
	BodyLimitBytes  int64         `mapstructure:"body_limit_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	RingSize    int    `mapstructure:"ring_size"`
}

// SchedulerConfig governs the periodic job tick.
type SchedulerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval"`
	IntervalMS    int           `mapstructure:"interval_ms"`
	Step          int           `mapstructure:"step"`
	ResultMessage string        `mapstructure:"result_message"`
}

// JobsConfig controls job identity and listing.
type JobsConfig struct {
	IDScheme     string `mapstructure:"id_scheme"`
	DefaultLimit int    `mapstructure:"default_limit"`
	MaxLimit     int    `mapstructure:"max_limit"`
}

// AdminConfig defines the shared-secret guard on admin routes.
type AdminConfig struct {
	Secret     string        `mapstructure:"secret"`
	CookieName string        `mapstructure:"cookie_name"`
	CookieTTL  time.Duration `mapstructure:"cookie_ttl"`
}

// SheetsConfig points the sheet reader at a spreadsheet.
type SheetsConfig struct {
	Source             string        `mapstructure:"source"`
	SpreadsheetID      string        `mapstructure:"spreadsheet_id"`
	SheetName          string        `mapstructure:"sheet_name"`
	URL                string        `mapstructure:"url"`
	Format             string        `mapstructure:"format"`
	ServiceAccountJSON string        `mapstructure:"service_account_json"`
	ReadyStatus        string        `mapstructure:"ready_status"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// LanguageConfig lists the languages and voices offered to clients.
type LanguageConfig struct {
	Defaults   []string          `mapstructure:"defaults"`
	VoicesJSON string            `mapstructure:"voices_json"`
	Voices     map[string]string `mapstructure:"voices"`
}

// StabilityConfig configures the image generation proxy.
type StabilityConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Engine  string        `mapstructure:"engine"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig configures the speech synthesis proxy.
type OpenAIConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	DefaultVoice string        `mapstructure:"default_voice"`
	Format       string        `mapstructure:"format"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects where generated artifacts are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the event log database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// WebhookConfig configures the outbound job notification hook.
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig configures the Redis-backed limiter on generation proxies.
type RateLimitConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// legacyEnv maps keys to the environment names the service historically read.
var legacyEnv = map[string][]string{
	"server.port":                 {"PORT"},
	"scheduler.interval_ms":       {"BOSSMIND_TICK_MS"},
	"stability.api_key":           {"STABILITY_API_KEY"},
	"openai.api_key":              {"OPENAI_API_KEY"},
	"sheets.spreadsheet_id":       {"GOOGLE_SHEETS_SPREADSHEET_ID", "SHEET_ID"},
	"sheets.sheet_name":           {"GOOGLE_SHEETS_SHEET_NAME"},
	"sheets.service_account_json": {"GOOGLE_SERVICE_ACCOUNT_JSON"},
	"languages.defaults":          {"DEFAULT_LANGS"},
	"languages.voices_json":       {"DEFAULT_VOICES_JSON"},
	"admin.secret":                {"ADMIN_SECRET"},
	"webhook.url":                 {"MAKE_WEBHOOK_URL"},
	"db.dsn":                      {"DATABASE_URL"},
	"ratelimit.redis_url":         {"REDIS_URL"},
}

// Load builds a Config from .env, disk, and environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindLegacyEnv(v *viper.Viper) error {
	for key, names := range legacyEnv {
		envs := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.service_name", "videomaker")
	v.SetDefault("server.version", "dev")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.body_limit_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.ring_size", 200)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", 6*time.Second)
	v.SetDefault("scheduler.interval_ms", 0)
	v.SetDefault("scheduler.step", 5)
	v.SetDefault("scheduler.result_message", "stub video generated (connect Stability/Runway/Luma next)")
	v.SetDefault("jobs.id_scheme", "sequential")
	v.SetDefault("jobs.default_limit", 50)
	v.SetDefault("jobs.max_limit", 200)
	v.SetDefault("admin.secret", "")
	v.SetDefault("admin.cookie_name", "admin_token")
	v.SetDefault("admin.cookie_ttl", 12*time.Hour)
	v.SetDefault("sheets.source", "export")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.sheet_name", "Sheet1")
	v.SetDefault("sheets.url", "")
	v.SetDefault("sheets.format", "csv")
	v.SetDefault("sheets.service_account_json", "")
	v.SetDefault("sheets.ready_status", "ready")
	v.SetDefault("sheets.timeout", 15*time.Second)
	v.SetDefault("languages.defaults", "ar,en,fr,de,es,ru,sq")
	v.SetDefault("languages.voices_json", "{}")
	v.SetDefault("stability.api_key", "")
	v.SetDefault("stability.base_url", "https://api.stability.ai")
	v.SetDefault("stability.engine", "stable-diffusion-xl-1024-v1-0")
	v.SetDefault("stability.timeout", 60*time.Second)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com")
	v.SetDefault("openai.model", "tts-1")
	v.SetDefault("openai.default_voice", "alloy")
	v.SetDefault("openai.format", "mp3")
	v.SetDefault("openai.timeout", 60*time.Second)
	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.local_dir", "artifacts")
	v.SetDefault("storage.prefix", "generated")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "system_logs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", 10*time.Second)
	v.SetDefault("ratelimit.redis_url", "")
	v.SetDefault("ratelimit.requests", 30)
	v.SetDefault("ratelimit.window", time.Minute)
}

// normalize applies the legacy millisecond tick override, trims language codes,
// and decodes the per-language voice map.
func (c *Config) normalize() error {
	if c.Scheduler.IntervalMS > 0 {
		c.Scheduler.Interval = time.Duration(c.Scheduler.IntervalMS) * time.Millisecond
	}

	langs := make([]string, 0, len(c.Languages.Defaults))
	for _, raw := range c.Languages.Defaults {
		for _, part := range strings.Split(raw, ",") {
			if lang := strings.ToLower(strings.TrimSpace(part)); lang != "" {
				langs = append(langs, lang)
			}
		}
	}
	c.Languages.Defaults = langs

	voices, err := ParseVoices(c.Languages.VoicesJSON)
	if err != nil {
		return err
	}
	for lang, voice := range c.Languages.Voices {
		voices[strings.ToLower(lang)] = voice
	}
	c.Languages.Voices = voices

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Sheets.Source = strings.ToLower(strings.TrimSpace(c.Sheets.Source))
	c.Sheets.Format = strings.ToLower(strings.TrimSpace(c.Sheets.Format))
	return nil
}

// ParseVoices decodes a language→voice map. Values may be plain voice names
// or objects carrying a "voice" field.
func ParseVoices(raw string) (map[string]string, error) {
	out := map[string]string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("languages.voices_json: %w", err)
	}
	for lang, value := range decoded {
		var name string
		if err := json.Unmarshal(value, &name); err == nil {
			out[strings.ToLower(lang)] = name
			continue
		}
		var obj struct {
			Voice string `json:"voice"`
		}
		if err := json.Unmarshal(value, &obj); err != nil {
			return nil, fmt.Errorf("languages.voices_json[%s]: %w", lang, err)
		}
		out[strings.ToLower(lang)] = obj.Voice
	}
	return out, nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.BodyLimitBytes <= 0 {
		return fmt.Errorf("server.body_limit_bytes must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}
	if c.Scheduler.Interval < time.Second || c.Scheduler.Interval > 5*time.Minute {
		return fmt.Errorf("scheduler.interval must be between 1s and 5m, got %s", c.Scheduler.Interval)
	}
	if c.Scheduler.Step < 1 || c.Scheduler.Step > 100 {
		return fmt.Errorf("scheduler.step must be between 1 and 100")
	}
	switch c.Jobs.IDScheme {
	case "", "sequential", "uuid":
	default:
		return fmt.Errorf("jobs.id_scheme must be sequential or uuid, got %q", c.Jobs.IDScheme)
	}
	if c.Jobs.MaxLimit <= 0 || c.Jobs.DefaultLimit <= 0 || c.Jobs.DefaultLimit > c.Jobs.MaxLimit {
		return fmt.Errorf("jobs.default_limit must be > 0 and <= jobs.max_limit")
	}
	switch c.Sheets.Source {
	case "export", "api":
	default:
		return fmt.Errorf("sheets.source must be export or api, got %q", c.Sheets.Source)
	}
	switch c.Sheets.Format {
	case "csv", "gviz", "html":
	default:
		return fmt.Errorf("sheets.format must be csv, gviz, or html, got %q", c.Sheets.Format)
	}
	switch c.Storage.Backend {
	case "none", "memory", "local":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend must be none, memory, local, or gcs, got %q", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.RateLimit.RedisURL != "" && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("ratelimit.requests and ratelimit.window must be > 0 when redis is configured")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// DefaultLanguage returns the first configured language, falling back to "en".
func (c Config) DefaultLanguage() string {
	if len(c.Languages.Defaults) > 0 {
		return c.Languages.Defaults[0]
	}
	return "en"
}
