package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Validate проверяет корректность конфигурации и возвращает все найденные проблемы сразу
func (c *Config) Validate() error {
	var errors []string

	// Порт
	if c.Port == "" {
		errors = append(errors, "port is required")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("invalid port: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("port must be between 1 and 65535, got %d", port))
		}
	}

	// База данных
	if c.DatabasePath == "" {
		errors = append(errors, "database path is required")
	}
	if c.MaxOpenConns < 1 {
		errors = append(errors, "max open connections must be at least 1")
	}
	if c.MaxIdleConns < 1 {
		errors = append(errors, "max idle connections must be at least 1")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		errors = append(errors, "max idle connections cannot be greater than max open connections")
	}
	if c.ConnMaxLifetime < time.Second {
		errors = append(errors, "connection max lifetime must be at least 1 second")
	}

	// Уровень логирования
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if c.LogLevel != "" {
		valid := false
		logLevelUpper := strings.ToUpper(c.LogLevel)
		for _, level := range validLogLevels {
			if logLevelUpper == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("invalid log level: %s (valid: %s)",
				c.LogLevel, strings.Join(validLogLevels, ", ")))
		}
	}

	// Пул обработчиков
	if c.WorkerCount < 1 || c.WorkerCount > 64 {
		errors = append(errors, fmt.Sprintf("worker count must be between 1 and 64, got %d", c.WorkerCount))
	}
	if c.ChunkSize < 1 {
		errors = append(errors, "chunk size must be at least 1")
	}

	// Удаленная классификация
	if c.AI != nil && c.AI.Enabled {
		if c.AI.URL == "" {
			errors = append(errors, "AI categorizer URL is required when enabled")
		} else if u, err := url.Parse(c.AI.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid AI categorizer URL: %s", c.AI.URL))
		}
		if c.AI.Model == "" {
			errors = append(errors, "AI categorizer model is required when enabled")
		}
		if c.AI.Timeout < time.Second {
			errors = append(errors, "AI timeout must be at least 1 second")
		}
		if c.AI.RateLimitPerMinute < 1 {
			errors = append(errors, "AI rate limit must be at least 1 request per minute")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}
