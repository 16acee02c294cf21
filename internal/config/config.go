package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Wildberries search API
	SearchURL      string
	SiteURL        string // base for product detail links
	SearchLimit    int
	RequestTimeout time.Duration
}

func Load() *Config {
	// Default MySQL connection string
	defaultDSN := "root:root@tcp(127.0.0.1:3306)/wb_parser?charset=utf8mb4&parseTime=True&loc=Local"

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", defaultDSN),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		SearchURL:      getEnv("WB_SEARCH_URL", "https://search.wb.ru/exactmatch/ru/common/v4/search"),
		SiteURL:        getEnv("WB_SITE_URL", "https://www.wildberries.ru"),
		SearchLimit:    getEnvInt("WB_SEARCH_LIMIT", 100),
		RequestTimeout: time.Duration(getEnvInt("WB_REQUEST_TIMEOUT", 10)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
