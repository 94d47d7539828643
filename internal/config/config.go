package config

import (
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Velocity-Developer/newads/internal/domain"
)

const (
	defaultTimezone = "Asia/Jakarta"
	configPathEnv   = "NEWADS_CONFIG"

	databaseDSNEnv      = "DATABASE_DSN"
	searchTermsURLEnv   = "SEARCH_TERMS_URL"
	searchTermsTokenEnv = "SEARCH_TERMS_TOKEN"
	openAIKeyEnv        = "OPENAI_API_KEY"
	openAIModelEnv      = "OPENAI_MODEL"
	openAIEndpointEnv   = "OPENAI_ENDPOINT"
	keywordsURLEnv      = "NEGATIVE_KEYWORDS_URL"
	keywordsTokenEnv    = "NEGATIVE_KEYWORDS_TOKEN"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
	natsURLEnv          = "NATS_URL"
	logLevelEnv         = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	SearchTerms   SearchTermsConfig  `yaml:"searchTerms"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	Submitter     SubmitterConfig    `yaml:"submitter"`
	Notifications NotificationConfig `yaml:"notifications"`
	Blacklist     BlacklistConfig    `yaml:"blacklist"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Logging       LoggingConfig      `yaml:"logging"`
	HTTP          HTTPConfig         `yaml:"http"`
	Events        EventsConfig       `yaml:"events"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SearchTermsConfig points at the zero-click reporting API.
type SearchTermsConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ClassifierConfig defines how to contact the chat-completion API.
type ClassifierConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"apiKey"`
	Timeout           time.Duration `yaml:"timeout"`
	ConnectTimeout    time.Duration `yaml:"connectTimeout"`
	MaxRetries        int           `yaml:"maxRetries"`
	RetryBackoff      time.Duration `yaml:"retryBackoff"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
}

// SubmitterConfig points at the negative-keyword input API.
type SubmitterConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Token       string        `yaml:"token"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"maxAttempts"`
	RetryDelay  time.Duration `yaml:"retryDelay"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	Endpoint string `yaml:"endpoint"`
}

// BlacklistConfig controls the process-wide blacklist cache.
type BlacklistConfig struct {
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SchedulerConfig defines how often the pipeline runs in schedule mode.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPConfig is the listen address of the admin/metrics server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// EventsConfig enables publishing run summaries to NATS.
type EventsConfig struct {
	NATSURL string `yaml:"natsUrl"`
	Subject string `yaml:"subject"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// RequireDatabase reports a missing database DSN.
func (c Config) RequireDatabase() error {
	return requireFields(map[string]string{"database.dsn (" + databaseDSNEnv + ")": c.Database.DSN})
}

// RequireSearchTerms reports missing zero-click source settings.
func (c Config) RequireSearchTerms() error {
	return requireFields(map[string]string{"searchTerms.endpoint (" + searchTermsURLEnv + ")": c.SearchTerms.Endpoint})
}

// RequireClassifier reports missing chat-completion settings.
func (c Config) RequireClassifier() error {
	return requireFields(map[string]string{
		"classifier.apiKey (" + openAIKeyEnv + ")": c.Classifier.APIKey,
		"classifier.endpoint":                      c.Classifier.Endpoint,
		"classifier.model":                         c.Classifier.Model,
	})
}

// RequireSubmitter reports missing negative-keyword API settings.
func (c Config) RequireSubmitter() error {
	return requireFields(map[string]string{
		"submitter.endpoint (" + keywordsURLEnv + ")": c.Submitter.Endpoint,
	})
}

// TelegramEnabled reports whether notifications can be delivered.
func (c Config) TelegramEnabled() bool {
	return c.Notifications.Telegram.BotToken != "" && c.Notifications.Telegram.ChatID != ""
}

func requireFields(fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%w: %s", domain.ErrMissingConfig, strings.Join(missing, ", "))
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{databaseDSNEnv, &c.Database.DSN},
		{searchTermsURLEnv, &c.SearchTerms.Endpoint},
		{searchTermsTokenEnv, &c.SearchTerms.Token},
		{openAIKeyEnv, &c.Classifier.APIKey},
		{openAIModelEnv, &c.Classifier.Model},
		{openAIEndpointEnv, &c.Classifier.Endpoint},
		{keywordsURLEnv, &c.Submitter.Endpoint},
		{keywordsTokenEnv, &c.Submitter.Token},
		{telegramTokenEnv, &c.Notifications.Telegram.BotToken},
		{telegramChatIDEnv, &c.Notifications.Telegram.ChatID},
		{natsURLEnv, &c.Events.NATSURL},
		{logLevelEnv, &c.Logging.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to UTC", tz)
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	mergeString(&base.Database.DSN, override.Database.DSN)

	mergeString(&base.SearchTerms.Endpoint, override.SearchTerms.Endpoint)
	mergeString(&base.SearchTerms.Token, override.SearchTerms.Token)
	mergeDuration(&base.SearchTerms.Timeout, override.SearchTerms.Timeout)

	mergeString(&base.Classifier.Endpoint, override.Classifier.Endpoint)
	mergeString(&base.Classifier.Model, override.Classifier.Model)
	mergeString(&base.Classifier.APIKey, override.Classifier.APIKey)
	mergeDuration(&base.Classifier.Timeout, override.Classifier.Timeout)
	mergeDuration(&base.Classifier.ConnectTimeout, override.Classifier.ConnectTimeout)
	mergeDuration(&base.Classifier.RetryBackoff, override.Classifier.RetryBackoff)
	if override.Classifier.MaxRetries > 0 {
		base.Classifier.MaxRetries = override.Classifier.MaxRetries
	}
	if override.Classifier.RequestsPerSecond > 0 {
		base.Classifier.RequestsPerSecond = override.Classifier.RequestsPerSecond
	}

	mergeString(&base.Submitter.Endpoint, override.Submitter.Endpoint)
	mergeString(&base.Submitter.Token, override.Submitter.Token)
	mergeDuration(&base.Submitter.Timeout, override.Submitter.Timeout)
	mergeDuration(&base.Submitter.RetryDelay, override.Submitter.RetryDelay)
	if override.Submitter.MaxAttempts > 0 {
		base.Submitter.MaxAttempts = override.Submitter.MaxAttempts
	}

	mergeString(&base.Notifications.Telegram.BotToken, override.Notifications.Telegram.BotToken)
	mergeString(&base.Notifications.Telegram.ChatID, override.Notifications.Telegram.ChatID)
	mergeString(&base.Notifications.Telegram.Endpoint, override.Notifications.Telegram.Endpoint)

	mergeDuration(&base.Blacklist.CacheTTL, override.Blacklist.CacheTTL)

	mergeDuration(&base.Scheduler.Interval, override.Scheduler.Interval)
	mergeString(&base.Scheduler.Timezone, override.Scheduler.Timezone)

	mergeString(&base.Logging.Level, override.Logging.Level)
	mergeString(&base.Logging.Format, override.Logging.Format)

	mergeString(&base.HTTP.Addr, override.HTTP.Addr)

	mergeString(&base.Events.NATSURL, override.Events.NATSURL)
	mergeString(&base.Events.Subject, override.Events.Subject)

	return base
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func defaultConfig() Config {
	return Config{
		SearchTerms: SearchTermsConfig{Timeout: 30 * time.Second},
		Classifier: ClassifierConfig{
			Endpoint:          "https://api.openai.com/v1/chat/completions",
			Model:             "gpt-4o-mini",
			Timeout:           120 * time.Second,
			ConnectTimeout:    30 * time.Second,
			MaxRetries:        3,
			RetryBackoff:      2 * time.Second,
			RequestsPerSecond: 2,
		},
		Submitter: SubmitterConfig{
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
			RetryDelay:  time.Second,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{Endpoint: "https://api.telegram.org"},
		},
		Blacklist: BlacklistConfig{CacheTTL: 5 * time.Minute},
		Scheduler: SchedulerConfig{Interval: time.Minute, Timezone: defaultTimezone},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		HTTP:      HTTPConfig{Addr: ":9090"},
		Events:    EventsConfig{Subject: "newads.pipeline.runs"},
	}
}
