package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"progressreport/report"
	apperrors "progressreport/server/errors"
	"progressreport/server/middleware"
)

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		middleware.HandleError(c, apperrors.NewServiceUnavailableError("database unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "progress-report",
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCreateAnalysis POST /api/v1/analyses
func (s *Server) handleCreateAnalysis(c *gin.Context) {
	in, err := s.parseAnalysisInput(c)
	if err != nil {
		middleware.HandleError(c, apperrors.WrapError(err, "invalid analysis input"))
		return
	}

	result, err := s.analyzer.Run(c.Request.Context(), in)
	if err != nil {
		middleware.HandleError(c, apperrors.WrapError(err, "analysis failed"))
		return
	}

	if err := s.store.SaveRun(c.Request.Context(), result); err != nil {
		middleware.HandleError(c, apperrors.NewInternalError("save analysis run", err))
		return
	}

	c.Header("Location", "/api/v1/analyses/"+result.RunID)
	c.JSON(http.StatusCreated, result)
}

// handleListAnalyses GET /api/v1/analyses?limit=N
func (s *Server) handleListAnalyses(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			middleware.HandleError(c, apperrors.NewValidationError("limit must be a positive integer", err))
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		middleware.HandleError(c, apperrors.NewInternalError("list analysis runs", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
}

// handleGetAnalysis GET /api/v1/analyses/:id
func (s *Server) handleGetAnalysis(c *gin.Context) {
	result, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, apperrors.WrapError(err, "load analysis run"))
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleExportAnalysis GET /api/v1/analyses/:id/export?format=xlsx|csv|json
func (s *Server) handleExportAnalysis(c *gin.Context) {
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		middleware.HandleError(c, apperrors.WrapError(err, "export"))
		return
	}

	result, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, apperrors.WrapError(err, "load analysis run"))
		return
	}

	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.FileName(result.RunID)))
	c.Status(http.StatusOK)
	if err := s.exporter.Export(c.Writer, format, result); err != nil {
		// Заголовки уже отправлены, остается только залогировать
		s.logger.Error("Export failed",
			"run_id", result.RunID,
			"format", format,
			"request_id", middleware.GetRequestIDFromGin(c),
			"error", err)
		_ = c.Error(err)
	}
}

// handleDeleteAnalysis DELETE /api/v1/analyses/:id
func (s *Server) handleDeleteAnalysis(c *gin.Context) {
	if err := s.store.DeleteRun(c.Request.Context(), c.Param("id")); err != nil {
		middleware.HandleError(c, apperrors.WrapError(err, "delete analysis run"))
		return
	}
	c.Status(http.StatusNoContent)
}

// handleVariants GET /api/v1/rules/variants
func (s *Server) handleVariants(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default":  s.config.ProjectVariant,
		"variants": s.analyzer.Variants(),
	})
}
