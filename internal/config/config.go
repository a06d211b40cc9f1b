// Package config provides hierarchical configuration loading for jirald.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the bot. It is built once at
// startup and passed explicitly into component constructors; nothing reads
// it ambiently after that.
type Config struct {
	Server    Server    `yaml:"server"`
	GitHub    GitHub    `yaml:"github"`
	Jira      Jira      `yaml:"jira"`
	LLM       LLM       `yaml:"llm"`
	Bot       Bot       `yaml:"bot"`
	Logging   Logging   `yaml:"logging"`
	Breaker   Breaker   `yaml:"breaker"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port string `yaml:"port"`
}

// GitHub holds GitHub App identity and webhook configuration.
type GitHub struct {
	AppID string `yaml:"app_id"`
	// PrivateKey is the App's RSA private key, base64-encoded PEM.
	PrivateKey    string `yaml:"private_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"`
	// BotLogin is the App's own comment author login, used to prevent
	// self-trigger loops.
	BotLogin string `yaml:"bot_login"`
}

// Jira holds tracker connection configuration.
type Jira struct {
	URL        string `yaml:"url"`
	Username   string `yaml:"username"`
	APIToken   string `yaml:"api_token"`
	ProjectKey string `yaml:"project_key"`
}

// LLM holds the hosted model endpoint configuration (OpenAI-compatible
// chat-completions API, e.g. a LiteLLM proxy).
type LLM struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Bot holds trigger configuration.
type Bot struct {
	// CommandToken is the comment prefix that triggers the bot.
	// Matching is case-sensitive and exact-prefix.
	CommandToken string `yaml:"command_token"`
	// TriggerLabel starts the auto-create flow when applied to a PR.
	TriggerLabel string `yaml:"trigger_label"`
	// CreatedLabel is applied to the PR after a successful auto-create.
	CreatedLabel string `yaml:"created_label"`
	// MaxConcurrentRuns bounds in-flight pipeline runs.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration for outbound clients.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Telemetry holds OpenTelemetry export configuration. An empty endpoint
// leaves the global providers as no-ops.
type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: Server{
			Port: "8000",
		},
		GitHub: GitHub{
			BaseURL:  "https://api.github.com",
			BotLogin: "jirald[bot]",
		},
		Jira: Jira{
			ProjectKey: "MBA",
		},
		LLM: LLM{
			Model:     "anthropic/claude-3-haiku",
			MaxTokens: 1000,
		},
		Bot: Bot{
			CommandToken:      "/jirald",
			TriggerLabel:      "create-jira-card",
			CreatedLabel:      "card-created",
			MaxConcurrentRuns: 8,
		},
		Logging: Logging{
			Level:   "info",
			Service: "jirald",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
	}
}
