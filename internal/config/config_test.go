package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{"PORT", "BOSSMIND_TICK_MS", "DEFAULT_LANGS", "DEFAULT_VOICES_JSON"} {
		t.Setenv(name, "")
	}
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 3000, cfg.Server.Port)
	require.Equal(t, ":3000", cfg.Addr())
	require.Equal(t, int64(1<<20), cfg.Server.BodyLimitBytes)
	require.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, 6*time.Second, cfg.Scheduler.Interval)
	require.Equal(t, 5, cfg.Scheduler.Step)
	require.Equal(t, "sequential", cfg.Jobs.IDScheme)
	require.Equal(t, 50, cfg.Jobs.DefaultLimit)
	require.Equal(t, 200, cfg.Jobs.MaxLimit)
	require.Equal(t, []string{"ar", "en", "fr", "de", "es", "ru", "sq"}, cfg.Languages.Defaults)
	require.Empty(t, cfg.Languages.Voices)
	require.Equal(t, "ar", cfg.DefaultLanguage())
	require.Equal(t, "none", cfg.Storage.Backend)
	require.Equal(t, "system_logs", cfg.DB.Table)
	require.Equal(t, "tts-1", cfg.OpenAI.Model)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  static_dir: public
scheduler:
  interval: 10s
  step: 10
jobs:
  id_scheme: uuid
  default_limit: 20
  max_limit: 100
sheets:
  source: api
  spreadsheet_id: abc123
  sheet_name: Queue
  format: gviz
languages:
  defaults: ["en", "fr"]
  voices:
    FR: nova
storage:
  backend: gcs
  gcs_bucket: media
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "public", cfg.Server.StaticDir)
	require.Equal(t, 10*time.Second, cfg.Scheduler.Interval)
	require.Equal(t, 10, cfg.Scheduler.Step)
	require.Equal(t, "uuid", cfg.Jobs.IDScheme)
	require.Equal(t, "api", cfg.Sheets.Source)
	require.Equal(t, "abc123", cfg.Sheets.SpreadsheetID)
	require.Equal(t, "Queue", cfg.Sheets.SheetName)
	require.Equal(t, "gviz", cfg.Sheets.Format)
	require.Equal(t, []string{"en", "fr"}, cfg.Languages.Defaults)
	require.Equal(t, map[string]string{"fr": "nova"}, cfg.Languages.Voices)
	require.Equal(t, "gcs", cfg.Storage.Backend)
	require.False(t, cfg.Logging.Development)
}

func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("BOSSMIND_TICK_MS", "2500")
	t.Setenv("SHEET_ID", "sheet-from-legacy")
	t.Setenv("DEFAULT_LANGS", " EN , ar ,,")
	t.Setenv("DEFAULT_VOICES_JSON", `{"en":{"voice":"echo"},"ar":"onyx"}`)
	t.Setenv("ADMIN_SECRET", "s3cret")
	t.Setenv("MAKE_WEBHOOK_URL", "https://hook.example.com/abc")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8088, cfg.Server.Port)
	require.Equal(t, 2500*time.Millisecond, cfg.Scheduler.Interval)
	require.Equal(t, "sheet-from-legacy", cfg.Sheets.SpreadsheetID)
	require.Equal(t, []string{"en", "ar"}, cfg.Languages.Defaults)
	require.Equal(t, map[string]string{"en": "echo", "ar": "onyx"}, cfg.Languages.Voices)
	require.Equal(t, "s3cret", cfg.Admin.Secret)
	require.Equal(t, "https://hook.example.com/abc", cfg.Webhook.URL)
	require.Equal(t, "en", cfg.DefaultLanguage())
}

func TestPrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("VIDEOMAKER_SERVER_PORT", "7070")
	t.Setenv("VIDEOMAKER_SCHEDULER_STEP", "25")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 25, cfg.Scheduler.Step)
}

func TestLoadRejectsBadVoicesJSON(t *testing.T) {
	t.Setenv("DEFAULT_VOICES_JSON", "{not json")

	_, err := Load("")
	require.ErrorContains(t, err, "languages.voices_json")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestParseVoices(t *testing.T) {
	t.Parallel()

	voices, err := ParseVoices("")
	require.NoError(t, err)
	require.Empty(t, voices)

	voices, err = ParseVoices(`{"DE":{"voice":"fable"},"es":"shimmer"}`)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"de": "fable", "es": "shimmer"}, voices)

	_, err = ParseVoices(`{"de":42}`)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Server:    ServerConfig{Port: 3000, BodyLimitBytes: 1 << 20, ShutdownTimeout: 5 * time.Second},
			Scheduler: SchedulerConfig{Interval: 6 * time.Second, Step: 5},
			Jobs:      JobsConfig{IDScheme: "sequential", DefaultLimit: 50, MaxLimit: 200},
			Sheets:    SheetsConfig{Source: "export", Format: "csv"},
			Storage:   StorageConfig{Backend: "none"},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"port":           func(c *Config) { c.Server.Port = 0 },
		"body limit":     func(c *Config) { c.Server.BodyLimitBytes = 0 },
		"shutdown":       func(c *Config) { c.Server.ShutdownTimeout = 0 },
		"tick too fast":  func(c *Config) { c.Scheduler.Interval = 100 * time.Millisecond },
		"tick too slow":  func(c *Config) { c.Scheduler.Interval = 10 * time.Minute },
		"step zero":      func(c *Config) { c.Scheduler.Step = 0 },
		"step too large": func(c *Config) { c.Scheduler.Step = 101 },
		"id scheme":      func(c *Config) { c.Jobs.IDScheme = "random" },
		"limits":         func(c *Config) { c.Jobs.DefaultLimit = 500 },
		"sheet source":   func(c *Config) { c.Sheets.Source = "ftp" },
		"sheet format":   func(c *Config) { c.Sheets.Format = "xlsx" },
		"backend":        func(c *Config) { c.Storage.Backend = "s3" },
		"gcs bucket":     func(c *Config) { c.Storage.Backend = "gcs" },
		"pubsub project": func(c *Config) { c.PubSub.TopicName = "jobs" },
		"ratelimit": func(c *Config) {
			c.RateLimit.RedisURL = "redis://localhost:6379"
			c.RateLimit.Requests = 0
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
