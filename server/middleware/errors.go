package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"progressreport/internal/monitoring"
	apperrors "progressreport/server/errors"
)

// HTTPError ошибка с HTTP статусом и сообщением для пользователя
type HTTPError interface {
	error
	StatusCode() int
	UserMessage() string
	GetContext() string
	Unwrap() error
}

// ErrorResponse структура ответа об ошибке
type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

var _ HTTPError = (*apperrors.AppError)(nil)

// HandleError логирует ошибку, учитывает ее в метриках и отвечает JSON.
// Ошибка без HTTP статуса считается внутренней.
func HandleError(c *gin.Context, err error) {
	reqID := GetRequestIDFromGin(c)

	var httpErr HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = apperrors.NewInternalError("unhandled error", err)
	}
	status := httpErr.StatusCode()

	attrs := []any{
		"error", httpErr.Unwrap(),
		"user_message", httpErr.UserMessage(),
		"status_code", status,
		"request_id", reqID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	if ctx := httpErr.GetContext(); ctx != "" {
		attrs = append(attrs, "context", ctx)
	}
	if status >= http.StatusInternalServerError {
		slog.Error("HTTP error", attrs...)
	} else {
		slog.Warn("HTTP error", attrs...)
	}

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	monitoring.RecordHTTPError(route, status)

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     httpErr.UserMessage(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: reqID,
	})
}
