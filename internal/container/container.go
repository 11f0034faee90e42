// Package container собирает компоненты сервиса из конфигурации.
package container

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"progressreport/analysis"
	"progressreport/classification"
	"progressreport/database"
	"progressreport/internal/config"
	"progressreport/rules"
)

// Container зависимости, общие для HTTP сервера и CLI
type Container struct {
	mu sync.Mutex

	Config   *config.Config
	Rules    *rules.RuleSet
	Remote   classification.Classifier
	Analyzer *analysis.Analyzer
	Store    *database.Store

	logger      *slog.Logger
	initialized bool
}

// NewContainer создает контейнер
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return &Container{
		Config: cfg,
		logger: slog.Default().With("component", "container"),
	}, nil
}

// Initialize загружает правила и создает анализатор. withStore открывает базу результатов.
func (c *Container) Initialize(ctx context.Context, withStore bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return fmt.Errorf("container already initialized")
	}

	if err := c.initRules(); err != nil {
		return err
	}
	c.initRemote()
	c.Analyzer = analysis.NewAnalyzer(c.Rules, analysis.Options{
		Workers:   c.Config.WorkerCount,
		ChunkSize: c.Config.ChunkSize,
		Remote:    c.Remote,
	})

	if withStore {
		if err := c.initStore(ctx); err != nil {
			return err
		}
	}

	c.initialized = true
	c.logger.Info("Container initialized",
		"variants", c.Rules.VariantNames(),
		"remote_classifier", c.Remote != nil,
		"store", withStore)
	return nil
}

func (c *Container) initRules() error {
	var (
		rs  *rules.RuleSet
		err error
	)
	if c.Config.RulesFile != "" {
		rs, err = rules.LoadFile(c.Config.RulesFile)
	} else {
		rs, err = rules.Default()
	}
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	// Вариант по умолчанию должен существовать до первого запроса
	if _, err := rs.ForVariant(c.Config.ProjectVariant); err != nil {
		return fmt.Errorf("default project variant: %w", err)
	}
	c.Rules = rs
	return nil
}

func (c *Container) initRemote() {
	ai := c.Config.AI
	if ai == nil || !ai.Enabled {
		return
	}
	c.Remote = classification.NewRemoteClassifier(classification.RemoteConfig{
		URL:               ai.URL,
		APIKey:            ai.APIKey,
		Model:             ai.Model,
		Timeout:           ai.Timeout,
		RequestsPerMinute: ai.RateLimitPerMinute,
		MaxRetries:        3,
	})
	c.logger.Info("Remote classifier enabled", "url", ai.URL, "model", ai.Model)
}

func (c *Container) initStore(ctx context.Context) error {
	store, err := database.NewStore(ctx, c.Config.DatabasePath, database.DBConfig{
		MaxOpenConns:    c.Config.MaxOpenConns,
		MaxIdleConns:    c.Config.MaxIdleConns,
		ConnMaxLifetime: c.Config.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to open result store: %w", err)
	}
	c.Store = store
	return nil
}

// Close освобождает ресурсы контейнера
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			return fmt.Errorf("failed to close result store: %w", err)
		}
		c.Store = nil
	}
	return nil
}
