package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	MongoURI         string
	DBName           string
	JWTSecret        string
	AccessTokenTTL   time.Duration
	MLBaseURL        string
	MLTimeout        time.Duration
	MLHealthTimeout  time.Duration
	SignupBalance    int
	RefreshWorkers   int
	RefreshQueueSize int
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		MongoURI:         getEnvOrDefault("MONGO_URI", ""),
		DBName:           getEnvOrDefault("DB_NAME", "telcostore"),
		JWTSecret:        getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:   getDurationEnv("ACCESS_TOKEN_TTL", 24, time.Hour),
		MLBaseURL:        getEnvOrDefault("ML_BACKEND_URL", "http://localhost:5001"),
		MLTimeout:        getDurationEnv("ML_TIMEOUT", 35, time.Second),
		MLHealthTimeout:  getDurationEnv("ML_HEALTH_TIMEOUT", 5, time.Second),
		SignupBalance:    getIntEnv("SIGNUP_BALANCE", 100000),
		RefreshWorkers:   getIntEnv("REFRESH_WORKERS", 2),
		RefreshQueueSize: getIntEnv("REFRESH_QUEUE_SIZE", 64),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}
