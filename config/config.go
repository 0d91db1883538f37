// Package config provides configuration management for the libcat application.
// It handles loading and validation of configuration values from environment
// variables, with support for default values and collective error reporting.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageConfig holds settings for the JSON file store.
type StorageConfig struct {
	// DataDir is the directory holding one JSON file per collection.
	// It is created on first run; deleting its files resets all state.
	DataDir string
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	BcryptCost int // Cost factor for password hashing
}

// LoanConfig holds loan business-rule configuration.
type LoanConfig struct {
	Period time.Duration // How long a borrowed book is held before it is due
}

// QueryConfig holds list-endpoint defaults.
type QueryConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// RateLimitConfig holds per-client request throttling settings.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string // Port for the HTTP server
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	Storage   *StorageConfig
	Auth      *AuthConfig
	Loans     *LoanConfig
	Query     *QueryConfig
	RateLimit *RateLimitConfig
	Server    *ServerConfig
}

// getOptionalEnv returns the value of key, or defaultValue when unset.
func getOptionalEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getOptionalEnvInt returns key parsed as an int, or defaultValue when unset.
// A value that fails to parse keeps the default and is reported in errors.
func getOptionalEnvInt(key string, defaultValue int, errors *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected integer, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueInt
}

// LoadConfig creates and returns an AppConfig by reading and validating
// environment variables. All errors encountered while loading are collected
// and returned as a single error so misconfiguration is reported in one shot.
func LoadConfig() (*AppConfig, error) {
	var errors []string

	// Storage
	dataDir := getOptionalEnv("LIBCAT_DATA_DIR", "data")

	// Auth
	bcryptCost := getOptionalEnvInt("LIBCAT_BCRYPT_COST", 10, &errors)
	if bcryptCost < 4 || bcryptCost > 31 {
		errors = append(errors, fmt.Sprintf("LIBCAT_BCRYPT_COST must be between 4 and 31, got %d", bcryptCost))
	}

	// Loans
	loanDays := getOptionalEnvInt("LIBCAT_LOAN_PERIOD_DAYS", 14, &errors)
	if loanDays < 1 {
		errors = append(errors, fmt.Sprintf("LIBCAT_LOAN_PERIOD_DAYS must be positive, got %d", loanDays))
	}

	// Query defaults
	defaultPageSize := getOptionalEnvInt("LIBCAT_PAGE_SIZE", 10, &errors)
	maxPageSize := getOptionalEnvInt("LIBCAT_MAX_PAGE_SIZE", 100, &errors)
	if defaultPageSize < 1 {
		errors = append(errors, fmt.Sprintf("LIBCAT_PAGE_SIZE must be positive, got %d", defaultPageSize))
	}
	if maxPageSize < defaultPageSize {
		errors = append(errors, fmt.Sprintf("LIBCAT_MAX_PAGE_SIZE (%d) must not be below LIBCAT_PAGE_SIZE (%d)", maxPageSize, defaultPageSize))
	}

	// Rate limiting
	requestsPerMinute := getOptionalEnvInt("LIBCAT_RATE_LIMIT_PER_MINUTE", 100, &errors)
	burst := getOptionalEnvInt("LIBCAT_RATE_LIMIT_BURST", 20, &errors)
	if requestsPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("LIBCAT_RATE_LIMIT_PER_MINUTE must be positive, got %d", requestsPerMinute))
	}
	if burst < 1 {
		errors = append(errors, fmt.Sprintf("LIBCAT_RATE_LIMIT_BURST must be positive, got %d", burst))
	}

	// Server
	serverPort := getOptionalEnv("PORT", "8000")

	if len(errors) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return &AppConfig{
		Storage: &StorageConfig{DataDir: dataDir},
		Auth:    &AuthConfig{BcryptCost: bcryptCost},
		Loans:   &LoanConfig{Period: time.Duration(loanDays) * 24 * time.Hour},
		Query: &QueryConfig{
			DefaultPageSize: defaultPageSize,
			MaxPageSize:     maxPageSize,
		},
		RateLimit: &RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			Burst:             burst,
		},
		Server: &ServerConfig{Port: serverPort},
	}, nil
}
