package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLM provider names accepted in DIARIST_LLM_PROVIDER.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// LLM
	LLMProvider     string
	LLMModel        string // chat replies and metadata extraction
	SummaryModel    string // diary summaries and emotion classification
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string
	LLMRate         float64 // requests per second, 0 disables limiting

	// Diary service
	Timezone         string
	SweepInterval    time.Duration
	SweepTolerance   time.Duration
	SweepConcurrency int
	ContextWindow    time.Duration

	// Retrieval side-service
	RAGURL     string
	RAGTimeout time.Duration

	// HTTP
	ServerPort string
	ServerURL  string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	provider := strings.ToLower(getEnv("DIARIST_LLM_PROVIDER", ProviderOpenAI))
	chatModel := getEnv("DIARIST_LLM_MODEL", defaultModel(provider))

	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "diarist"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "journal"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     provider,
		LLMModel:        chatModel,
		SummaryModel:    getEnv("DIARIST_SUMMARY_MODEL", chatModel),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		LLMRate:         getFloat("DIARIST_LLM_RATE", 2),

		Timezone:         getEnv("DIARIST_TIMEZONE", "Asia/Seoul"),
		SweepInterval:    getDuration("DIARIST_SWEEP_INTERVAL", time.Minute),
		SweepTolerance:   getDuration("DIARIST_SWEEP_TOLERANCE", 10*time.Minute),
		SweepConcurrency: getInt("DIARIST_SWEEP_CONCURRENCY", 4),
		ContextWindow:    getDuration("DIARIST_CONTEXT_WINDOW", 48*time.Hour),

		RAGURL:     getEnv("DIARIST_RAG_URL", "http://localhost:8000/rag"),
		RAGTimeout: getDuration("DIARIST_RAG_TIMEOUT", 20*time.Second),

		ServerPort: getEnv("DIARIST_SERVER_PORT", "3000"),
		ServerURL:  getEnv("DIARIST_SERVER_URL", "http://localhost:3000"),

		LogFile:  getEnv("DIARIST_LOG_FILE", "/tmp/diarist.log"),
		LogLevel: parseLogLevel(getEnv("DIARIST_LOG_LEVEL", "INFO")),
	}
}

// Validate checks values that would otherwise fail deep inside a component.
func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid DIARIST_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("DIARIST_SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.SweepTolerance < 0 {
		return fmt.Errorf("DIARIST_SWEEP_TOLERANCE must not be negative, got %s", c.SweepTolerance)
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLMProvider)
	}
	return nil
}

// Location returns the service time zone. Calendar days are computed in it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	case ProviderOllama:
		return "llama3.2"
	default:
		return "gpt-4o"
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
