package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Host string
	Port int

	// Public base URL Strava can reach this instance at. Optional at
	// load time; webhook reconciliation fails without it.
	PublicURL string

	// Database configuration
	DatabasePath string

	// Strava API configuration
	StravaClientID     string
	StravaClientSecret string
	StravaVerifyToken  string

	// Events API configuration (empty disables auth)
	EventsAPIKey string

	// Refresh behavior
	RefreshIntervalSeconds int
	ActivityTypes          []string
	Units                  string

	// Image rotation
	PhotosEnabled              bool
	MaxImages                  int
	ImageRotateIntervalSeconds int

	// Metrics configuration
	MetricsEnabled bool
	MetricsHost    string
	MetricsPort    int

	// Logging configuration
	LogLevel string
}

// Load reads configuration from environment variables
// It fails fast if required variables are missing
func Load() (*Config, error) {
	cfg := &Config{
		// Optional values with defaults
		Host:                       getEnv("HOST", "localhost"),
		Port:                       getEnvInt("PORT", 4102),
		PublicURL:                  getEnv("PUBLIC_URL", ""),
		DatabasePath:               getEnv("DATABASE_PATH", "./data.db"),
		EventsAPIKey:               getEnv("EVENTS_API_KEY", ""),
		RefreshIntervalSeconds:     getEnvInt("REFRESH_INTERVAL_SECONDS", 300),
		Units:                      getEnv("UNITS", "metric"),
		PhotosEnabled:              getEnvBool("PHOTOS_ENABLED", false),
		MaxImages:                  getEnvInt("MAX_IMAGES", 100),
		ImageRotateIntervalSeconds: getEnvInt("IMAGE_ROTATE_INTERVAL_SECONDS", 15),
		MetricsEnabled:             getEnvBool("METRICS_ENABLED", false),
		MetricsHost:                getEnv("METRICS_HOST", "localhost"),
		MetricsPort:                getEnvInt("METRICS_PORT", 9102),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
	}

	if types := getEnv("ACTIVITY_TYPES", ""); types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cfg.ActivityTypes = append(cfg.ActivityTypes, t)
			}
		}
	}

	// Required values
	var missingVars []string

	cfg.StravaClientID = os.Getenv("STRAVA_CLIENT_ID")
	if cfg.StravaClientID == "" {
		missingVars = append(missingVars, "STRAVA_CLIENT_ID")
	}

	cfg.StravaClientSecret = os.Getenv("STRAVA_CLIENT_SECRET")
	if cfg.StravaClientSecret == "" {
		missingVars = append(missingVars, "STRAVA_CLIENT_SECRET")
	}

	cfg.StravaVerifyToken = os.Getenv("STRAVA_VERIFY_TOKEN")
	if cfg.StravaVerifyToken == "" {
		missingVars = append(missingVars, "STRAVA_VERIFY_TOKEN")
	}

	if len(missingVars) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
