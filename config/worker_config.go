package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mailparser_server/pkg/apperr"
)

// generateWorkerID creates a unique consumer name using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "mailparser"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

// Mailbox auth methods
const (
	AuthLogin   = "LOGIN"
	AuthXOAuth2 = "XOAUTH2"
)

type Config struct {
	Port        string
	Environment string

	// API
	APIJWTSecret   string
	AllowedOrigins []string
	MaxUploadBytes int

	// Logging
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int

	// Extraction
	RulesFile  string
	WebEnrich  bool
	WebTimeout time.Duration

	// Stores
	DatabaseURL   string
	MongoDBURL    string
	MongoDBName   string
	RedisURL      string
	Neo4jURL      string
	Neo4jUsername string
	Neo4jPassword string
	Neo4jDatabase string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64

	// Mailbox
	MailSource   string // imap | gmail | none
	PollInterval time.Duration

	// IMAP
	IMAPHost     string
	IMAPPort     int
	IMAPUser     string
	IMAPPassword string
	IMAPMailbox  string
	AuthMethod   string
	TenantID     string
	ClientID     string
	ClientSecret string

	// Gmail
	GmailCredentialsJSON string
	GmailTokenJSON       string
	GmailUser            string

	// CentralStationCRM
	CSCRMAPIKey string
	CSCRMServer string

	// Worker
	WorkerID        string
	WorkerCount     int
	WorkerQueueSize int
	JobTimeout      time.Duration
	JobMaxRetries   int

	// Consumer (Redis Stream)
	ConsumerBatchSize int
	ConsumerBlockMS   int
	ParseStream       string
	ConsumerGroup     string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// API
		APIJWTSecret:   getEnv("API_JWT_SECRET", ""),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		MaxUploadBytes: getEnvInt("MAX_UPLOAD_BYTES", 25<<20),

		// Logging
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),

		// Extraction
		RulesFile:  getEnv("RULES_FILE", ""),
		WebEnrich:  getEnvBool("WEB_ENRICH", false),
		WebTimeout: time.Duration(getEnvInt("WEB_TIMEOUT_SEC", 10)) * time.Second,

		// Stores
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		MongoDBURL:    getEnv("MONGODB_URL", ""),
		MongoDBName:   getEnv("MONGODB_DATABASE", "mailparser"),
		RedisURL:      getEnv("REDIS_URL", ""),
		Neo4jURL:      getEnv("NEO4J_URL", ""),
		Neo4jUsername: getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase: getEnv("NEO4J_DATABASE", "neo4j"),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0),

		// Mailbox
		MailSource:   strings.ToLower(getEnv("MAIL_SOURCE", "none")),
		PollInterval: time.Duration(getEnvInt("POLL_INTERVAL", 15)) * time.Second,

		// IMAP
		IMAPHost:     getEnv("IMAP_HOST", "outlook.office365.com"),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMailbox:  getEnv("IMAP_MAILBOX", "INBOX"),
		AuthMethod:   strings.ToUpper(getEnv("AUTH_METHOD", AuthLogin)),
		TenantID:     getEnv("TENANT_ID", ""),
		ClientID:     getEnv("CLIENT_ID", ""),
		ClientSecret: getEnv("CLIENT_SECRET", ""),

		// Gmail
		GmailCredentialsJSON: getEnv("GMAIL_CREDENTIALS_JSON", ""),
		GmailTokenJSON:       getEnv("GMAIL_TOKEN_JSON", ""),
		GmailUser:            getEnv("GMAIL_USER", "me"),

		// CentralStationCRM
		CSCRMAPIKey: strings.TrimSpace(getEnv("CSCRM_API_KEY", "")),
		CSCRMServer: strings.TrimRight(strings.TrimSpace(getEnv("CSCRM_SERVER", "")), "/"),

		// Worker
		WorkerID:        getEnv("WORKER_ID", generateWorkerID()),
		WorkerCount:     getEnvInt("WORKER_COUNT", 4),
		WorkerQueueSize: getEnvInt("WORKER_QUEUE_SIZE", 100),
		JobTimeout:      time.Duration(getEnvInt("JOB_TIMEOUT_SEC", 120)) * time.Second,
		JobMaxRetries:   getEnvInt("JOB_MAX_RETRIES", 3),

		// Consumer
		ConsumerBatchSize: getEnvInt("CONSUMER_BATCH_SIZE", 10),
		ConsumerBlockMS:   getEnvInt("CONSUMER_BLOCK_MS", 5000),
		ParseStream:       getEnv("PARSE_STREAM", "mail:parse"),
		ConsumerGroup:     getEnv("CONSUMER_GROUP", "mailparser-workers"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.MailSource {
	case "none", "":
	case "imap":
		if c.IMAPUser == "" {
			return apperr.ConfigError("IMAP_USER is required for MAIL_SOURCE=imap")
		}
		switch c.AuthMethod {
		case AuthLogin:
			if c.IMAPPassword == "" {
				return apperr.ConfigError("IMAP_PASSWORD is required for AUTH_METHOD=LOGIN")
			}
		case AuthXOAuth2:
			if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" {
				return apperr.ConfigError("TENANT_ID, CLIENT_ID and CLIENT_SECRET are required for AUTH_METHOD=XOAUTH2")
			}
		default:
			return apperr.ConfigError(fmt.Sprintf("unsupported AUTH_METHOD %q", c.AuthMethod))
		}
	case "gmail":
		if c.GmailCredentialsJSON == "" || c.GmailTokenJSON == "" {
			return apperr.ConfigError("GMAIL_CREDENTIALS_JSON and GMAIL_TOKEN_JSON are required for MAIL_SOURCE=gmail")
		}
	default:
		return apperr.ConfigError(fmt.Sprintf("unsupported MAIL_SOURCE %q", c.MailSource))
	}
	if c.PollInterval <= 0 {
		return apperr.ConfigError("POLL_INTERVAL must be positive")
	}
	return nil
}

// CRMEnabled reports whether CentralStationCRM lookups are configured.
func (c *Config) CRMEnabled() bool {
	return c.CSCRMAPIKey != "" && c.CSCRMServer != ""
}

// LLMEnabled reports whether an OpenAI key is configured.
func (c *Config) LLMEnabled() bool {
	return c.OpenAIAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
