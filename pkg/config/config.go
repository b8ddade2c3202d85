package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
		BaseURL string
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Conversation routing configuration
	Conversation struct {
		// FreshnessWindow bounds how far back a prior turn still counts
		// as the current conversation.
		FreshnessWindow time.Duration
		// TurnTTL is how long a persisted turn record stays queryable.
		TurnTTL time.Duration
		// RestartKeyword resets the conversation when matched case-insensitively.
		RestartKeyword string
		// RestartConfidence is the minimum NLU confidence for a restart intent.
		RestartConfidence float64
		// MenuMatchThreshold is the minimum string similarity for fuzzy
		// matching free text against a remembered menu label.
		MenuMatchThreshold float64
		// CleanupInterval controls the expired-turn sweep.
		CleanupInterval time.Duration
		// PayloadDomains maps an envelope payload token to a target domain
		// at the opening of a conversation.
		PayloadDomains map[string]string
		// TriggerPhrases maps an exact (case-insensitive) message to a
		// target domain at the opening of a conversation.
		TriggerPhrases map[string]string
	}

	// Collaborator service endpoints
	Services struct {
		NLUBaseURL      string
		PlatformBaseURL string
		UsersBaseURL    string
		CallTimeout     time.Duration
	}

	// Redis settings (per-sender turn lease)
	Redis struct {
		Enabled bool
		Addr    string
		LockTTL time.Duration
	}

	// Dead-letter channel settings
	DeadLetter struct {
		Enabled    bool
		URL        string
		Exchange   string
		RoutingKey string
	}

	// JWT configuration (admin endpoints)
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		TrustedProxies []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Cache settings (user-id lookups)
	Cache struct {
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "3000")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+instance.Server.Port)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "chat-router")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// Conversation config
		instance.Conversation.FreshnessWindow = getEnvDuration("CONVERSATION_CUTOFF", 3*time.Hour)
		instance.Conversation.TurnTTL = getEnvDuration("TURN_TTL", 24*time.Hour)
		instance.Conversation.RestartKeyword = getEnvString("RESTART_KEYWORD", "restart")
		instance.Conversation.RestartConfidence = getEnvFloat("RESTART_CONFIDENCE", 0.5)
		instance.Conversation.MenuMatchThreshold = getEnvFloat("MENU_MATCH_THRESHOLD", 0.6)
		instance.Conversation.CleanupInterval = getEnvDuration("TURN_CLEANUP_INTERVAL", 1*time.Hour)
		instance.Conversation.PayloadDomains = getEnvStringMap("PAYLOAD_DOMAINS", map[string]string{
			"find_services":  "service",
			"find_knowledge": "knowledge",
			"take_action":    "action",
		})
		instance.Conversation.TriggerPhrases = getEnvStringMap("TRIGGER_PHRASES", map[string]string{
			"izwi lami": "service",
		})

		// Collaborator endpoints
		instance.Services.NLUBaseURL = getEnvString("NLU_BASE_URL", "http://localhost:5005")
		instance.Services.PlatformBaseURL = getEnvString("PLATFORM_BASE_URL", "http://localhost:8080/v2/api")
		instance.Services.UsersBaseURL = getEnvString("USERS_BASE_URL", "http://localhost:8080/v2/api/whatsapp")
		instance.Services.CallTimeout = getEnvDuration("COLLABORATOR_TIMEOUT", 10*time.Second)

		// Redis config
		instance.Redis.Addr = getEnvString("REDIS_URL", "")
		instance.Redis.Enabled = instance.Redis.Addr != ""
		instance.Redis.LockTTL = getEnvDuration("TURN_LOCK_TTL", 30*time.Second)

		// Dead-letter config
		instance.DeadLetter.URL = getEnvString("DEADLETTER_URL", "")
		instance.DeadLetter.Enabled = instance.DeadLetter.URL != ""
		instance.DeadLetter.Exchange = getEnvString("DEADLETTER_EXCHANGE", "chat-router.dlx")
		instance.DeadLetter.RoutingKey = getEnvString("DEADLETTER_ROUTING_KEY", "turn.failed")

		// JWT config
		instance.JWT.Secret = getEnvString("JWT_SECRET", "")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Cache settings
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 1*time.Hour)
		instance.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 10000)
		instance.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// getEnvStringMap parses "key1:value1,key2:value2" pairs
func getEnvStringMap(key string, defaultValue map[string]string) map[string]string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	result := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		result[strings.ToLower(strings.TrimSpace(parts[0]))] = strings.TrimSpace(parts[1])
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
