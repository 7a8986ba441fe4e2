package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port               string
	StoreDriver        string
	DatabaseURL        string
	DataFile           string
	SessionTTL         time.Duration
	EnforceRoles       bool
	RateLimitPerMinute int
	RateLimitBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	driver := os.Getenv("STORE_DRIVER")
	if driver == "" {
		driver = "file"
	}

	dataFile := os.Getenv("DATA_FILE")
	if dataFile == "" {
		dataFile = "jobcards.json"
	}

	return Config{
		Port:               port,
		StoreDriver:        driver,
		DatabaseURL:        os.Getenv("DB_DSN"),
		DataFile:           dataFile,
		SessionTTL:         readDurationSeconds("SESSION_TTL_SECONDS", 8*60*60),
		EnforceRoles:       readBool("AUTH_ENFORCE", false),
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
