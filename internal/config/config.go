package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port         string
	SecureCookie bool

	// Backend selection
	DataBackend string
	APIBaseURL  string

	// SQLite backend
	SQLiteDBPath string
	JWTSecret    string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sessions
	SessionTTL  time.Duration
	MaxSessions int

	// Subscriptions
	SubscriptionInterval time.Duration

	// Alert worker
	SMTPAddr string
	SMTPFrom string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SecureCookie: getEnvBool("SECURE_COOKIE", false),

		DataBackend: getEnv("DATA_BACKEND", "memory"),
		APIBaseURL:  getEnv("API_BASE_URL", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/expensebook.db"),
		JWTSecret:    getEnv("JWT_SECRET", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expensebook"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_alerts"),

		SessionTTL:  getEnvDuration("SESSION_TTL", 24*time.Hour),
		MaxSessions: getEnvInt("MAX_SESSIONS", 10000),

		SubscriptionInterval: getEnvDuration("SUBSCRIPTION_INTERVAL", time.Hour),

		SMTPAddr: getEnv("SMTP_ADDR", ""),
		SMTPFrom: getEnv("SMTP_FROM", ""),
	}

	return cfg
}

// Validate collects every configuration problem instead of stopping
// at the first one.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "remote", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "remote" {
		if c.APIBaseURL == "" {
			errors = append(errors, "API base URL cannot be empty when using remote backend")
		} else if parsed, err := url.Parse(c.APIBaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid API base URL '%s'", c.APIBaseURL))
		}
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
		if c.JWTSecret == "" {
			errors = append(errors, "JWT secret cannot be empty when using sqlite backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.MaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("invalid max sessions %d: must be at least 1", c.MaxSessions))
	}

	if c.SubscriptionInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid subscription interval %v: must be at least 1 second", c.SubscriptionInterval))
	} else if c.SubscriptionInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid subscription interval %v: must be at most 24 hours", c.SubscriptionInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
