package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/storefront/messaging/internal/apperr"
)

var ErrNotFound = apperr.ErrNotFound

// Коды SQLSTATE, на которые реагируют репозитории.
const (
	codeUniqueViolation   = "23505"
	codeInvalidText       = "22P02"
	codeSerialization     = "40001"
	codeDeadlockDetected  = "40P01"
	classConnection       = "08"
	classOperatorShutdown = "57P"
)

// classify оборачивает ошибку pgx в соответствующий sentinel.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation:
			return fmt.Errorf("%s: %w: %w", op, apperr.ErrConflict, err)
		case pgErr.Code == codeInvalidText:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		case pgErr.Code == codeSerialization, pgErr.Code == codeDeadlockDetected,
			strings.HasPrefix(pgErr.Code, classConnection), strings.HasPrefix(pgErr.Code, classOperatorShutdown):
			return apperr.Transient(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if isTransient(err) {
		return apperr.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
