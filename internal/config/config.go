package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds the application configuration.
type Config struct {
	ServerPort        int
	DatabasePath      string
	ServersRoot       string // Base directory holding one directory per instance
	BackupPath        string
	BackupSchedule    string // Standard cron spec; empty disables scheduled backups
	LogLevel          string
	LogJSON           bool
	JWTSecret         string
	AdminPasswordHash string // bcrypt hash of the operator password
	AllowedOrigins    []string
	SecureCookies     bool          // set when APP_ENV=production
	StatsInterval     time.Duration // how often disk usage is sampled
}

// Load reads configuration from the environment, after loading envFiles (or
// ".env" when none are given) if they exist.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d out of range", port)
	}

	logJSON, err := strconv.ParseBool(getEnv("LOG_JSON", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_JSON: %w", err)
	}

	schedule := strings.TrimSpace(getEnv("BACKUP_SCHEDULE", ""))
	if schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return nil, fmt.Errorf("invalid BACKUP_SCHEDULE: %w", err)
		}
	}

	statsInterval, err := time.ParseDuration(getEnv("STATS_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_INTERVAL: %w", err)
	}
	if statsInterval <= 0 {
		return nil, fmt.Errorf("invalid STATS_INTERVAL: must be positive")
	}

	return &Config{
		ServerPort:        port,
		DatabasePath:      getEnv("DATABASE_PATH", "./ender.db"),
		ServersRoot:       getEnv("SERVERS_ROOT", "./servers"),
		BackupPath:        getEnv("BACKUP_PATH", "./backups"),
		BackupSchedule:    schedule,
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogJSON:           logJSON,
		JWTSecret:         getEnv("JWT_SECRET", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		SecureCookies:     getEnv("APP_ENV", "") == "production",
		StatsInterval:     statsInterval,
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
