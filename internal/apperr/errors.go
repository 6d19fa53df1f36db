// Package apperr - таксономия ошибок ядра сообщений и уведомлений и их отображение в HTTP-статусы.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrTransient    = errors.New("store temporarily unavailable")
	ErrConflict     = errors.New("conflict")
)

// Error несёт сообщение для клиента поверх одной из sentinel-ошибок.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

func newErr(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Validation - некорректный запрос (пустое сообщение, неверный получатель).
func Validation(format string, args ...any) error { return newErr(ErrValidation, format, args...) }

// Unauthorized - нет идентичности сессии.
func Unauthorized(format string, args ...any) error { return newErr(ErrUnauthorized, format, args...) }

// Forbidden - идентичность не совпадает с владельцем беседы/уведомления.
func Forbidden(format string, args ...any) error { return newErr(ErrForbidden, format, args...) }

// NotFound - неизвестный id беседы/уведомления.
func NotFound(format string, args ...any) error { return newErr(ErrNotFound, format, args...) }

// Transient оборачивает сбой хранилища или кеша (недоступность, таймаут).
func Transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

// IsTransient сообщает, можно ли считать ошибку временной.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// Message возвращает текст для клиента: своё сообщение для *Error, общий текст для остального.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.msg
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrConflict):
		return "conflict, retry"
	case errors.Is(err, ErrTransient):
		return "service temporarily unavailable"
	case errors.Is(err, ErrValidation):
		return "invalid request"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	return "internal error"
}

// HTTPStatus отображает ошибку в HTTP-код ответа.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTransient):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
