package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/msomdec/portfolio-users/internal/domain"
)

// PostgreSQL SQLSTATE codes: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func storageErr(op string, err error) error {
	return &domain.StorageError{Op: op, Err: err}
}
