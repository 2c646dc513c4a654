package config

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile = ".env"

	defaultPort           = "8080"
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultRequestTimeout = 10 * time.Second

	defaultDatabaseMaxConns    = 10
	defaultDatabaseConnTimeout = 10 * time.Second

	defaultProcessorBaseURL = "https://api.razorpay.com"
	defaultProcessorTimeout = 8 * time.Second
	defaultDevModeAmount    = 1.0

	defaultEmailTimeout = 5 * time.Second

	defaultSheetsRange = "Sheet1!A:G"

	defaultOpsTokenTTL = time.Hour
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Processor ProcessorConfig
	Email     EmailConfig
	Sheets    SheetsConfig
	Security  SecurityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// DatabaseConfig holds Postgres connection parameters.
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	ConnTimeout time.Duration
}

// ProcessorConfig collects payment-processor credentials and the dev toggle.
// AllowDevBypass must be set server-side before a caller-requested dev mode
// is honored; a client can never disable verification on its own.
type ProcessorConfig struct {
	KeyID          string
	KeySecret      string
	WebhookSecret  string
	BaseURL        string
	Timeout        time.Duration
	AllowDevBypass bool
	DevModeAmount  float64
}

// EmailConfig points at the transactional email endpoint used after fulfillment.
type EmailConfig struct {
	Endpoint string
	Timeout  time.Duration
	Enabled  bool
}

// SheetsConfig points at the spreadsheet that mirrors internship purchases
// for the onboarding roster. Export stays disabled until both the sheet id
// and service-account credentials are present.
type SheetsConfig struct {
	SpreadsheetID   string
	Range           string
	CredentialsJSON string
}

// SecurityConfig groups internal-surface authentication settings.
type SecurityConfig struct {
	OpsTokenSecret string
	OpsTokenTTL    time.Duration
}

// ValidationError reports configuration fields that failed validation.
type ValidationError struct {
	Missing []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	fields := append([]string(nil), e.Missing...)
	sort.Strings(fields)
	return fmt.Sprintf("config: missing required values: %s", strings.Join(fields, ", "))
}

// Option customises configuration loading.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the dotenv file consulted during Load.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables process environment lookups, primarily for tests.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration from explicit values, the process
// environment, and an optional dotenv file, in that order of precedence.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:           stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:    durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: durationWithDefault(lookup, "API_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
		},
		Database: DatabaseConfig{
			URL:         stringWithDefault(lookup, "API_DATABASE_URL", ""),
			MaxConns:    intWithDefault(lookup, "API_DATABASE_MAX_CONNS", defaultDatabaseMaxConns),
			ConnTimeout: durationWithDefault(lookup, "API_DATABASE_CONN_TIMEOUT", defaultDatabaseConnTimeout),
		},
		Processor: ProcessorConfig{
			KeyID:          stringWithDefault(lookup, "API_PROCESSOR_KEY_ID", ""),
			KeySecret:      stringWithDefault(lookup, "API_PROCESSOR_KEY_SECRET", ""),
			WebhookSecret:  stringWithDefault(lookup, "API_PROCESSOR_WEBHOOK_SECRET", ""),
			BaseURL:        stringWithDefault(lookup, "API_PROCESSOR_BASE_URL", defaultProcessorBaseURL),
			Timeout:        durationWithDefault(lookup, "API_PROCESSOR_TIMEOUT", defaultProcessorTimeout),
			AllowDevBypass: boolWithDefault(lookup, "API_PROCESSOR_ALLOW_DEV_BYPASS", false),
			DevModeAmount:  floatWithDefault(lookup, "API_PROCESSOR_DEV_MODE_AMOUNT", defaultDevModeAmount),
		},
		Email: EmailConfig{
			Endpoint: stringWithDefault(lookup, "API_EMAIL_ENDPOINT", ""),
			Timeout:  durationWithDefault(lookup, "API_EMAIL_TIMEOUT", defaultEmailTimeout),
			Enabled:  boolWithDefault(lookup, "API_EMAIL_ENABLED", true),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   stringWithDefault(lookup, "API_SHEETS_SPREADSHEET_ID", ""),
			Range:           stringWithDefault(lookup, "API_SHEETS_RANGE", defaultSheetsRange),
			CredentialsJSON: stringWithDefault(lookup, "API_SHEETS_CREDENTIALS_JSON", ""),
		},
		Security: SecurityConfig{
			OpsTokenSecret: stringWithDefault(lookup, "API_OPS_TOKEN_SECRET", ""),
			OpsTokenTTL:    durationWithDefault(lookup, "API_OPS_TOKEN_TTL", defaultOpsTokenTTL),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string
	if strings.TrimSpace(cfg.Database.URL) == "" {
		missing = append(missing, "API_DATABASE_URL")
	}
	if strings.TrimSpace(cfg.Processor.KeySecret) == "" && !cfg.Processor.AllowDevBypass {
		missing = append(missing, "API_PROCESSOR_KEY_SECRET")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: open env file %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key != "" {
			values[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}
