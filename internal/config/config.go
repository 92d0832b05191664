package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds the application configuration.
type AppConfig struct {
	ServerPort     string
	Environment    string
	MongoURI       string
	MongoDatabase  string
	RedisAddr      string
	RedisPassword  string
	KafkaBrokers   []string
	KafkaTopic     string
	S3Bucket       string
	S3Region       string
	JWTSecret      string
	TokenMaxAge    time.Duration
	AllowedOrigins []string
	ChatListLimit  int64
	MessageLimit   int64
}

// Cfg is the loaded configuration. LoadConfig must run before anything reads it.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables, first trying a
// .env file if present. A missing .env is only a warning so deployments that
// inject real environment variables keep working.
func LoadConfig(envPath ...string) {
	envFile := ".env"
	if len(envPath) > 0 {
		envFile = envPath[0]
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("Warning: Could not load %s file: %v. Relying on environment variables.", envFile, err)
	}

	tokenHours := getEnvInt("TOKEN_HOURS", 72)

	Cfg = &AppConfig{
		ServerPort:     getEnv("PORT", "8080"),
		Environment:    getEnv("APP_ENV", "development"),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "echochat"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:   strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "echochat.message-events"),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		JWTSecret:      getEnv("JWT_SECRET", "a_very_long_and_secure_default_secret_key_please_change_this"),
		TokenMaxAge:    time.Hour * time.Duration(tokenHours),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		ChatListLimit:  int64(getEnvInt("CHAT_LIST_LIMIT", 50)),
		MessageLimit:   int64(getEnvInt("MESSAGE_LIMIT", 100)),
	}

	log.Printf("Configuration loaded: Port=%s, Mongo=%s/%s, TokenMaxAge=%v",
		Cfg.ServerPort, redactURI(Cfg.MongoURI), Cfg.MongoDatabase, Cfg.TokenMaxAge)
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: Invalid %s value '%s', using default %d. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return value
}

// redactURI strips credentials from a connection URI for logging.
func redactURI(uri string) string {
	parts := strings.Split(uri, "@")
	if len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return uri
}
