package errors

import (
	"errors"
	"fmt"
	"net/http"

	"progressreport/analysis"
	"progressreport/database"
	"progressreport/dataset"
	"progressreport/qa"
	"progressreport/report"
	"progressreport/rules"
	"progressreport/tracker"
)

// AppError ошибка приложения с HTTP статусом и сообщением для пользователя
type AppError struct {
	Code    int    `json:"status_code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
	Context string `json:"-"`
}

// Error реализует интерфейс error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap возвращает вложенную ошибку для errors.Is и errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode возвращает HTTP статус код ошибки
func (e *AppError) StatusCode() int {
	return e.Code
}

// UserMessage возвращает сообщение для пользователя
func (e *AppError) UserMessage() string {
	return e.Message
}

// GetContext возвращает контекст ошибки
func (e *AppError) GetContext() string {
	return e.Context
}

// WithContext добавляет контекст к ошибке
func (e *AppError) WithContext(context string) *AppError {
	e.Context = context
	return e
}

// NewNotFoundError создает ошибку 404 Not Found
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: message, Err: err}
}

// NewValidationError создает ошибку 400 Bad Request
func NewValidationError(message string, err error) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message, Err: err}
}

// NewUnprocessableError создает ошибку 422: данные прочитаны, но непригодны для анализа
func NewUnprocessableError(message string, err error) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: message, Err: err}
}

// NewServiceUnavailableError создает ошибку 503 Service Unavailable
func NewServiceUnavailableError(message string, err error) *AppError {
	return &AppError{Code: http.StatusServiceUnavailable, Message: message, Err: err}
}

// NewInternalError создает ошибку 500. Пользователь видит общее сообщение, детали только в логах.
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: "Internal server error",
		Err:     errors.Join(errors.New(message), err),
	}
}

// WrapError переводит доменную ошибку в AppError с подходящим статусом.
// Уже готовая AppError получает префикс сообщения.
func WrapError(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
			Context: appErr.Context,
		}
	}

	var missing *dataset.MissingColumnError
	switch {
	case errors.Is(err, database.ErrRunNotFound):
		return NewNotFoundError("analysis run not found", err)
	case errors.Is(err, rules.ErrUnknownVariant),
		errors.Is(err, report.ErrUnsupportedFormat):
		return NewValidationError(fmt.Sprintf("%s: %v", message, err), err)
	case errors.As(err, &missing):
		return NewUnprocessableError(fmt.Sprintf("%s: %s", message, missing.Error()), err)
	case errors.Is(err, analysis.ErrNoQAData),
		errors.Is(err, analysis.ErrNoTrackerData),
		errors.Is(err, qa.ErrEmptySnapshot),
		errors.Is(err, qa.ErrSnapshotFile),
		errors.Is(err, tracker.ErrNoTrackerData),
		errors.Is(err, tracker.ErrUnreadableDate):
		return NewUnprocessableError(fmt.Sprintf("%s: %v", message, err), err)
	}
	return NewInternalError(message, err)
}
