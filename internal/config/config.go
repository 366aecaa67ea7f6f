package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	MemoryBackendSQLite   = "sqlite"
	MemoryBackendPinecone = "pinecone"
	MemoryBackendNone     = "none"
)

type Config struct {
	GeminiAPIKey          string
	GenerationModel       string
	EmbeddingModel        string
	GenerationTimeout     time.Duration
	GenerationTemperature float32

	DatabaseURL string
	HTTPPort    string
	LogMode     string
	JWTSecret   string

	MemoryBackend           string
	PineconeAPIKey          string
	PineconeIndexHost       string
	PineconeNamespacePrefix string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration
}

var AppConfig Config

// LoadConfig populates AppConfig from the environment. A missing GEMINI_API_KEY
// is not fatal here: generation reports it as a configuration error per request.
func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	AppConfig = FromEnv()
}

func FromEnv() Config {
	return Config{
		GeminiAPIKey:          strings.TrimSpace(getEnv("GEMINI_API_KEY", "")),
		GenerationModel:       getEnv("GENERATION_MODEL", "gemini-1.5-flash"),
		EmbeddingModel:        getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		GenerationTimeout:     getEnvAsDuration("GENERATION_TIMEOUT", 30*time.Second),
		GenerationTemperature: getEnvAsFloat32("GENERATION_TEMPERATURE", 0.8),

		DatabaseURL: getEnv("DATABASE_URL", "dreamsync.db"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		LogMode:     getEnv("LOG_MODE", "dev"),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		MemoryBackend:           strings.ToLower(getEnv("MEMORY_BACKEND", MemoryBackendSQLite)),
		PineconeAPIKey:          getEnv("PINECONE_API_KEY", ""),
		PineconeIndexHost:       getEnv("PINECONE_INDEX_HOST", ""),
		PineconeNamespacePrefix: getEnv("PINECONE_NAMESPACE_PREFIX", "dreams"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		LockTTL:       getEnvAsDuration("LOCK_TTL", 60*time.Second),
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 32); err == nil {
		return float32(value)
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
