package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDuplicateExamination = errors.New("examination record with this identifier already exists")
	ErrDuplicateResult      = errors.New("result for this examination and phase already exists")
	ErrUnknownExamination   = errors.New("examination record does not exist")
	ErrDuplicateAdmin       = errors.New("admin with this email already exists")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
