// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	GRPCHealthPort string
	FrontendURL    string
	DBPath         string
	// KnowledgeServerPort is used by cmd/knowledge-server only.
	KnowledgeServerPort string

	Knowledge       KnowledgeConfig
	Remote          RemoteConfig
	Generation      GenerationConfig
	Transcripts     TranscriptConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// KnowledgeConfig locates the reference corpus and user uploads.
type KnowledgeConfig struct {
	Dir         string
	UserDocsDir string
	ChunkSize   int
	TopK        int
}

// RemoteConfig configures the knowledge service client.
type RemoteConfig struct {
	URL                string
	Timeout            time.Duration
	ReconnectInterval  time.Duration
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
}

// GenerationConfig holds credentials for the chat completion service. Values
// are passed through unchanged.
type GenerationConfig struct {
	APIKey          string
	InstanceName    string
	Deployment      string
	TextDeployment  string
	AudioDeployment string
	APIVersion      string
	BaseURL         string
	Timeout         time.Duration
	MaxTokens       int
	Temperature     float64
}

// TranscriptConfig controls the archived turn store.
type TranscriptConfig struct {
	Retention     time.Duration
	PruneSchedule string
}

// RateLimitConfig bounds chat requests per client.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "3000"),
		GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", "3002"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/vish.db"),

		KnowledgeServerPort: getEnv("MCP_SERVER_PORT", "3001"),
		Knowledge: KnowledgeConfig{
			Dir:         getEnv("KNOWLEDGE_DIR", "./data/mental_health_docs"),
			UserDocsDir: getEnv("USER_DOCS_DIR", "./data/user_documents"),
			ChunkSize:   800,
			TopK:        getEnvInt("RETRIEVAL_TOP_K", 3),
		},
		Remote: RemoteConfig{
			URL:                getEnv("MCP_SERVER_URL", "http://localhost:3001"),
			Timeout:            getEnvDuration("REMOTE_TIMEOUT", 5*time.Second),
			ReconnectInterval:  getEnvDuration("REMOTE_RECONNECT_INTERVAL", time.Minute),
			BreakerMaxFailures: getEnvInt("REMOTE_BREAKER_MAX_FAILURES", 3),
			BreakerTimeout:     getEnvDuration("REMOTE_BREAKER_TIMEOUT", 30*time.Second),
		},
		Generation: GenerationConfig{
			APIKey:          getEnv("AZURE_INFERENCE_SDK_KEY", ""),
			InstanceName:    getEnv("INSTANCE_NAME", ""),
			Deployment:      getEnv("DEPLOYMENT_NAME", ""),
			TextDeployment:  getEnv("TEXT_DEPLOYMENT_NAME", ""),
			AudioDeployment: getEnv("AUDIO_DEPLOYMENT_NAME", ""),
			APIVersion:      getEnv("OPENAI_API_VERSION", "2025-01-01-preview"),
			BaseURL:         getEnv("OPENAI_BASE_URL", ""),
			Timeout:         getEnvDuration("GENERATION_TIMEOUT", 60*time.Second),
			MaxTokens:       getEnvInt("GENERATION_MAX_TOKENS", 4096),
			Temperature:     getEnvFloat("GENERATION_TEMPERATURE", 0.7),
		},
		Transcripts: TranscriptConfig{
			Retention:     getEnvDuration("TRANSCRIPT_RETENTION", 30*24*time.Hour),
			PruneSchedule: getEnv("TRANSCRIPT_PRUNE_SCHEDULE", "@daily"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Knowledge.Dir == "" || c.Knowledge.UserDocsDir == "" {
		return fmt.Errorf("KNOWLEDGE_DIR and USER_DOCS_DIR cannot be empty")
	}
	if c.Knowledge.TopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be > 0")
	}
	if c.Remote.URL != "" {
		if u, err := url.Parse(c.Remote.URL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("MCP_SERVER_URL must be an absolute URL")
		}
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT must be > 0")
	}
	if c.Remote.BreakerMaxFailures <= 0 {
		return fmt.Errorf("REMOTE_BREAKER_MAX_FAILURES must be > 0")
	}
	if c.Transcripts.Retention <= 0 {
		return fmt.Errorf("TRANSCRIPT_RETENTION must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the frontend.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(c.FrontendURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// GenerationConfigured reports whether credentials for the completion
// service are present.
func (c *Config) GenerationConfigured() bool {
	g := c.Generation
	return g.APIKey != "" && (g.InstanceName != "" || g.BaseURL != "") && g.Deployment != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
