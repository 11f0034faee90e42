package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config конфигурация сервиса сверки
type Config struct {
	// Сервер
	Port string `json:"port"`

	// База данных результатов анализа
	DatabasePath    string        `json:"database_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// Логирование
	LogLevel string `json:"log_level"`

	// Правила сверки
	ProjectVariant string `json:"project_variant"`
	RulesFile      string `json:"rules_file"`

	// Пул обработчиков записей QA-системы
	WorkerCount int `json:"worker_count"`
	ChunkSize   int `json:"chunk_size"`

	// Удаленная классификация
	AI *AIConfig `json:"ai"`
}

// AIConfig конфигурация удаленного классификатора
type AIConfig struct {
	Enabled            bool          `json:"enabled"`
	URL                string        `json:"url"`
	APIKey             string        `json:"-"`
	Model              string        `json:"model"`
	Timeout            time.Duration `json:"timeout"`
	RateLimitPerMinute int           `json:"rate_limit_per_minute"`
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() (*Config, error) {
	config := &Config{
		// Сервер
		Port: getEnv("SERVER_PORT", "9999"),

		// База данных
		DatabasePath:    getEnv("DATABASE_PATH", "progress.db"),
		MaxOpenConns:    getEnvInt("MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvInt("MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvDuration("CONN_MAX_LIFETIME", 5*time.Minute),

		// Логирование
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		// Правила
		ProjectVariant: getEnv("PROJECT_VARIANT", "standard"),
		RulesFile:      os.Getenv("RULES_FILE"),

		// Пул
		WorkerCount: getEnvInt("WORKER_COUNT", 4),
		ChunkSize:   getEnvInt("CHUNK_SIZE", 500),

		AI: LoadAIConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadAIConfig загружает конфигурацию удаленного классификатора
func LoadAIConfig() *AIConfig {
	return &AIConfig{
		Enabled:            getEnvBool("AI_CATEGORIZER_ENABLED", false),
		URL:                getEnv("AI_CATEGORIZER_URL", "https://openrouter.ai/api/v1"),
		APIKey:             os.Getenv("AI_CATEGORIZER_API_KEY"),
		Model:              getEnv("AI_CATEGORIZER_MODEL", "openai/gpt-4o-mini"),
		Timeout:            getEnvDuration("AI_TIMEOUT", 30*time.Second),
		RateLimitPerMinute: getEnvInt("AI_RATE_LIMIT_PER_MINUTE", 20),
	}
}

// SetupLogger настраивает slog по умолчанию на уровень из конфигурации
func SetupLogger(level string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLogLevel(level)}))
	slog.SetDefault(logger)
	return logger
}

// ParseLogLevel переводит строковый уровень в slog.Level (INFO по умолчанию)
func ParseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает переменную окружения как int или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool получает переменную окружения как bool или возвращает значение по умолчанию
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration получает переменную окружения как Duration или возвращает значение по умолчанию
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
