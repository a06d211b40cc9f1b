package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "jirald.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// LoadTracker returns a Config for tracker-only commands using the same
// hierarchy, validating only the JIRA credentials. The MCP server talks to
// nothing but the tracker, so GitHub and model settings stay optional.
func LoadTracker() (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, DefaultConfigFile); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := cfg.ValidateTracker(); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg. Only non-empty env
// values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "JIRALD_PORT")
	setString(&cfg.GitHub.AppID, "GITHUB_APP_ID")
	setString(&cfg.GitHub.PrivateKey, "GITHUB_PRIVATE_KEY")
	setString(&cfg.GitHub.WebhookSecret, "GITHUB_WEBHOOK_SECRET")
	setString(&cfg.GitHub.BaseURL, "GITHUB_BASE_URL")
	setString(&cfg.GitHub.BotLogin, "JIRALD_BOT_LOGIN")
	setString(&cfg.Jira.URL, "JIRA_URL")
	setString(&cfg.Jira.Username, "JIRA_USERNAME")
	setString(&cfg.Jira.APIToken, "JIRA_API_TOKEN")
	setString(&cfg.Jira.ProjectKey, "JIRA_PROJECT_KEY")
	setString(&cfg.LLM.URL, "JIRALD_LLM_URL")
	setString(&cfg.LLM.APIKey, "JIRALD_LLM_API_KEY")
	setString(&cfg.LLM.Model, "JIRALD_LLM_MODEL")
	setInt(&cfg.LLM.MaxTokens, "JIRALD_LLM_MAX_TOKENS")
	setString(&cfg.Bot.CommandToken, "JIRALD_COMMAND_TOKEN")
	setString(&cfg.Bot.TriggerLabel, "JIRALD_TRIGGER_LABEL")
	setString(&cfg.Bot.CreatedLabel, "JIRALD_CREATED_LABEL")
	setInt(&cfg.Bot.MaxConcurrentRuns, "JIRALD_MAX_CONCURRENT_RUNS")
	setString(&cfg.Logging.Level, "JIRALD_LOG_LEVEL")
	setString(&cfg.Logging.Service, "JIRALD_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "JIRALD_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "JIRALD_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "JIRALD_BREAKER_TIMEOUT")
	setString(&cfg.Telemetry.OTLPEndpoint, "JIRALD_OTLP_ENDPOINT")
}

// Validate checks required fields and reports every missing key in a single
// error, so misconfiguration is caught at startup rather than deep inside a
// request handler.
func (c *Config) Validate() error {
	var missing []string

	required := []struct {
		key   string
		value string
	}{
		{"github.app_id (GITHUB_APP_ID)", c.GitHub.AppID},
		{"github.private_key (GITHUB_PRIVATE_KEY)", c.GitHub.PrivateKey},
		{"github.webhook_secret (GITHUB_WEBHOOK_SECRET)", c.GitHub.WebhookSecret},
		{"jira.url (JIRA_URL)", c.Jira.URL},
		{"jira.username (JIRA_USERNAME)", c.Jira.Username},
		{"jira.api_token (JIRA_API_TOKEN)", c.Jira.APIToken},
		{"llm.url (JIRALD_LLM_URL)", c.LLM.URL},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Bot.MaxConcurrentRuns < 1 {
		return errors.New("bot.max_concurrent_runs must be >= 1")
	}
	if c.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if _, err := c.GitHub.DecodedPrivateKey(); err != nil {
		return err
	}
	return nil
}

// ValidateTracker checks only the tracker credentials, reporting every
// missing key in a single error.
func (c *Config) ValidateTracker() error {
	var missing []string

	required := []struct {
		key   string
		value string
	}{
		{"jira.url (JIRA_URL)", c.Jira.URL},
		{"jira.username (JIRA_USERNAME)", c.Jira.Username},
		{"jira.api_token (JIRA_API_TOKEN)", c.Jira.APIToken},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// DecodedPrivateKey returns the App private key PEM decoded from base64.
func (g GitHub) DecodedPrivateKey() ([]byte, error) {
	pem, err := base64.StdEncoding.DecodeString(g.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("github.private_key is not valid base64: %w", err)
	}
	return pem, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
