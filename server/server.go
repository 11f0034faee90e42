// Package server HTTP API анализа выполнения работ.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"progressreport/analysis"
	"progressreport/database"
	"progressreport/internal/config"
	"progressreport/report"
	"progressreport/server/middleware"
)

// RunStore хранилище прогонов, которым пользуется API
type RunStore interface {
	SaveRun(ctx context.Context, r *analysis.Result) error
	GetRun(ctx context.Context, id string) (*analysis.Result, error)
	ListRuns(ctx context.Context, limit int) ([]database.RunSummary, error)
	DeleteRun(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// Server HTTP сервер анализа
type Server struct {
	config     *config.Config
	analyzer   *analysis.Analyzer
	store      RunStore
	exporter   *report.Exporter
	httpServer *http.Server
	logger     *slog.Logger

	handlerOnce sync.Once
	httpHandler http.Handler
	startTime   time.Time
}

// NewServer создает сервер
func NewServer(cfg *config.Config, analyzer *analysis.Analyzer, store RunStore) *Server {
	return &Server{
		config:    cfg,
		analyzer:  analyzer,
		store:     store,
		exporter:  report.NewExporter(),
		logger:    slog.Default().With("component", "http_server"),
		startTime: time.Now(),
	}
}

// Handler возвращает HTTP обработчик, маршруты строятся один раз
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		s.httpHandler = s.buildRouter()
	})
	return s.httpHandler
}

// ServeHTTP реализует http.Handler для тестов
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

func (s *Server) buildRouter() *gin.Engine {
	// GIN_MODE переопределяет режим, по умолчанию release
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = maxUploadMemory
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.Gzip())

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		analyses := api.Group("/analyses")
		analyses.POST("", s.handleCreateAnalysis)
		analyses.GET("", s.handleListAnalyses)
		analyses.GET("/:id", s.handleGetAnalysis)
		analyses.GET("/:id/export", s.handleExportAnalysis)
		analyses.DELETE("/:id", s.handleDeleteAnalysis)

		api.GET("/rules/variants", s.handleVariants)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, middleware.ErrorResponse{
			Error:     "route not found",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			RequestID: middleware.GetRequestIDFromGin(c),
		})
	})
	return router
}

// Start запускает HTTP сервер и блокируется до его остановки
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server on %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

// Shutdown останавливает HTTP сервер, дожидаясь завершения запросов
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("HTTP server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	s.logger.Info("HTTP server stopped", "uptime", time.Since(s.startTime))
	return nil
}
