package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// S3Config holds object storage settings shared by the S3 backends.
// Empty credentials mean anonymous access; an empty endpoint means AWS.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PathStyle bool
}

// LocatorConfig holds address resolution and transfer settings.
type LocatorConfig struct {
	Timeout         time.Duration
	DefaultRegion   string
	CloudPattern    string
	AccessURLColumn string
	DownloadDir     string
	Concurrency     int
	// AWSDriver selects the client behind the "aws" provider: "minio" or "sdk".
	AWSDriver string
	Providers []string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	LogLevel string
	Locator  LocatorConfig
	S3       S3Config
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Locator: LocatorConfig{
			Timeout:         getEnvDuration("LOCATOR_TIMEOUT", 30*time.Second),
			DefaultRegion:   getEnv("LOCATOR_DEFAULT_REGION", "us-east-1"),
			CloudPattern:    getEnv("LOCATOR_CLOUD_PATTERN", ""),
			AccessURLColumn: getEnv("LOCATOR_ACCESS_URL_COLUMN", "access_url"),
			DownloadDir:     getEnv("LOCATOR_DOWNLOAD_DIR", "."),
			Concurrency:     getEnvInt("LOCATOR_CONCURRENCY", 4),
			AWSDriver:       getEnv("LOCATOR_AWS_DRIVER", "minio"),
			Providers:       getEnvList("LOCATOR_PROVIDERS", []string{"aws"}),
		},
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			UseSSL:    getEnvBool("S3_USE_SSL", true),
			PathStyle: getEnvBool("S3_PATH_STYLE", false),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("45s") or plain seconds ("45").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if s, err := strconv.Atoi(v); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
