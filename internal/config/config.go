package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServiceType selects which model provider backs an endpoint. Selection is
// a pure configuration switch: there is no fallback between providers.
type ServiceType string

const (
	ServiceDeepSeek ServiceType = "DEEPSEEK"
	ServiceOllama   ServiceType = "OLLAMA"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret      string
	AccessTokenTTL time.Duration

	// Provider selection
	ChatService   ServiceType
	ReasonService ServiceType

	// DeepSeek
	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	DeepSeekModel   string

	// Ollama
	OllamaBaseURL     string
	OllamaChatModel   string
	OllamaReasonModel string

	// Search
	SerpAPIKey        string
	SearchResultCount int

	// Streaming
	StreamIdleTimeout time.Duration

	// Storage
	StoragePath string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),
		JWTSecret:   mustGetEnv("JWT_SECRET"),

		AccessTokenTTL: time.Duration(getEnvAsIntOrDefault("ACCESS_TOKEN_TTL_MINUTES", 30)) * time.Minute,

		ChatService:   parseServiceType(getEnvOrDefault("CHAT_SERVICE", string(ServiceDeepSeek))),
		ReasonService: parseServiceType(getEnvOrDefault("REASON_SERVICE", string(ServiceOllama))),

		DeepSeekAPIKey:  getEnvOrDefault("DEEPSEEK_API_KEY", ""),
		DeepSeekBaseURL: getEnvOrDefault("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		DeepSeekModel:   getEnvOrDefault("DEEPSEEK_MODEL", "deepseek-chat"),

		OllamaBaseURL:     getEnvOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaChatModel:   getEnvOrDefault("OLLAMA_CHAT_MODEL", "deepseek-r1:32b"),
		OllamaReasonModel: getEnvOrDefault("OLLAMA_REASON_MODEL", "deepseek-r1:32b"),

		SerpAPIKey:        getEnvOrDefault("SERPAPI_KEY", ""),
		SearchResultCount: getEnvAsIntOrDefault("SEARCH_RESULT_COUNT", 3),

		StreamIdleTimeout: time.Duration(getEnvAsIntOrDefault("STREAM_IDLE_TIMEOUT_SECONDS", 120)) * time.Second,

		StoragePath: getEnvOrDefault("STORAGE_PATH", "./uploads"),
		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func parseServiceType(raw string) ServiceType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(ServiceOllama):
		return ServiceOllama
	case string(ServiceDeepSeek):
		return ServiceDeepSeek
	default:
		panic(fmt.Sprintf("unknown service type %q (want DEEPSEEK or OLLAMA)", raw))
	}
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
