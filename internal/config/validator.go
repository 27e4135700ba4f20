package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ValidateEnv validates that all required environment variables are set
func ValidateEnv(requiredVars []string) error {
	var missing []string

	for _, varName := range requiredVars {
		if os.Getenv(varName) == "" {
			missing = append(missing, varName)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

// Validate checks cross-field requirements of a loaded Config.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Database.URL == "" {
		problems = append(problems, "database url is required (DATABASE_URL)")
	}
	if cfg.Session.TTL <= 0 {
		problems = append(problems, "session ttl must be positive")
	}
	if cfg.Session.ActivityDebounce < 0 {
		problems = append(problems, "session activity debounce must not be negative")
	}
	switch cfg.Email.Mode {
	case EmailModeLog:
	case EmailModeSMTP:
		if cfg.Email.Host == "" || cfg.Email.Port == 0 {
			problems = append(problems, "smtp mode requires SMTP_HOST and SMTP_PORT")
		}
	case EmailModeKafka:
		if cfg.Kafka.Brokers == "" {
			problems = append(problems, "kafka mode requires KAFKA_BROKERS")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown EMAIL_MODE %q", cfg.Email.Mode))
	}
	if cfg.Reminder.Concurrency < 1 {
		problems = append(problems, "reminder concurrency must be at least 1")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// GetEnvOrDefault retrieves an environment variable or returns a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envString(key string, target *string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func envInt(key string, target *int) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			*target = n
		}
	}
}

func envBool(key string, target *bool) {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			*target = b
		}
	}
}

func envDuration(key string, target *time.Duration) {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			*target = d
		}
	}
}

func envList(key string, target *[]string) {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*target = out
	}
}
