package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string
	JWTSecret   string

	// Redis (rate limiting + the asynq task queue)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Completion service. An empty key is a valid configuration and
	// selects the non-LLM fallback path everywhere.
	GeminiAPIKey      string
	GeminiModel       string
	CompletionTimeout int // seconds

	// Chunking / retrieval tunables
	ChunkSize        int
	ChunkOverlap     int
	RetrievalTopK    int
	MaxDocumentBytes int64
	MaxUploadSize    int64

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int // seconds

	// Reconciliation sweep
	SweepIntervalMinutes int
	StuckAfterMinutes    int

	// Telemetry
	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/engage_kb"),
		DBName:      getEnv("DB_NAME", "engage_kb"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		CompletionTimeout: getEnvInt("COMPLETION_TIMEOUT", 30),

		ChunkSize:        getEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 50),
		RetrievalTopK:    getEnvInt("RETRIEVAL_TOP_K", 5),
		MaxDocumentBytes: getEnvInt64("MAX_DOCUMENT_BYTES", 2097152), // 2MB raw text
		MaxUploadSize:    getEnvInt64("MAX_UPLOAD_SIZE", 20971520),   // 20MB PDF upload

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		SweepIntervalMinutes: getEnvInt("SWEEP_INTERVAL_MINUTES", 15),
		StuckAfterMinutes:    getEnvInt("STUCK_AFTER_MINUTES", 30),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg, nil
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
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
