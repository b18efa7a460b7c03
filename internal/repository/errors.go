package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

// Коды ошибок PostgreSQL, означающие некорректные данные от клиента.
const (
	pgNotNullViolation   = "23502"
	pgCheckViolation     = "23514"
	pgInvalidTextValue   = "22P02"
	pgDatetimeOutOfRange = "22008"
)

// mapWriteError превращает нарушения ограничений схемы в ErrInvalid.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgNotNullViolation, pgCheckViolation, pgInvalidTextValue, pgDatetimeOutOfRange:
		return fmt.Errorf("%w: %s", ErrInvalid, pgErr.Message)
	default:
		return err
	}
}
