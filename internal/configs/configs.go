package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

type Config struct {
	AppURL                 string
	DatabaseDSN            string
	Timezone               string
	TickIntervalSeconds    int
	RateLimit              int
	RedisEnabled           bool
	RedisAddr              string
	DedupTTLSeconds        int
	CacheTTLSeconds        int
	EarlyMarginHours       int
	GraceHours             int
	MaxTemplateFailures    int
	ShutdownTimeoutSeconds int
}

func Load() Config {
	appHost := getEnv("APP_HOST", "127.0.0.1")
	appPort := getEnv("APP_PORT", "8080")
	redisHost := getEnv("REDIS_HOST", "127.0.0.1")
	redisPort := getEnv("REDIS_PORT", "6379")

	cfg := Config{
		AppURL:                 fmt.Sprintf("%s:%s", appHost, appPort),
		DatabaseDSN:            getEnv("DATABASE_DSN", "taskflow.db"),
		Timezone:               getEnv("APP_TIMEZONE", "Asia/Bangkok"),
		TickIntervalSeconds:    getEnvAsInt("SCHEDULER_TICK_SECONDS", 60),
		RateLimit:              getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		RedisEnabled:           getEnv("REDIS_ENABLED", "false") == "true",
		RedisAddr:              fmt.Sprintf("%s:%s", redisHost, redisPort),
		DedupTTLSeconds:        getEnvAsInt("OCCURRENCE_DEDUP_TTL_SECONDS", 3600),
		CacheTTLSeconds:        getEnvAsInt("LEADERBOARD_CACHE_TTL_SECONDS", 30),
		EarlyMarginHours:       getEnvAsInt("KPI_EARLY_MARGIN_HOURS", 24),
		GraceHours:             getEnvAsInt("KPI_GRACE_HOURS", 24),
		MaxTemplateFailures:    getEnvAsInt("TEMPLATE_MAX_FAILURES", 3),
		ShutdownTimeoutSeconds: getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 20),
	}

	validate(cfg)
	return cfg
}

func validate(cfg Config) {
	if cfg.AppURL == "" {
		log.Fatal("APP_URL must not be empty (e.g. 127.0.0.1:8080)")
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("DATABASE_DSN must not be empty")
	}
	if cfg.TickIntervalSeconds <= 0 {
		log.Fatal("SCHEDULER_TICK_SECONDS must be greater than 0")
	}
	if cfg.RateLimit <= 0 {
		log.Fatal("RATE_LIMIT_PER_MINUTE must be greater than 0")
	}
	if cfg.EarlyMarginHours < 0 {
		log.Fatal("KPI_EARLY_MARGIN_HOURS must not be negative")
	}
	if cfg.GraceHours < 0 {
		log.Fatal("KPI_GRACE_HOURS must not be negative")
	}
	if cfg.MaxTemplateFailures <= 0 {
		log.Fatal("TEMPLATE_MAX_FAILURES must be greater than 0")
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid integer value for %s", key)
		}
		return i
	}
	return defaultVal
}
