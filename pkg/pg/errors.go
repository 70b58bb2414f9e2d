package pg

import (
	"errors"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNoURL      = errors.New("pg: DATABASE_URL is empty")
	ErrBadConfig  = errors.New("pg: invalid pool config")
	ErrConnect    = errors.New("pg: cannot connect")
	ErrUnhealthy  = errors.New("pg: ping failed")
	ErrMigrations = errors.New("pg: migrations failed")
	ErrTxFailed   = errors.New("pg: transaction failed")
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsNotFoundError reports pgx.ErrNoRows.
func IsNotFoundError(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// IsDuplicateKeyError reports a unique_violation.
func IsDuplicateKeyError(err error) bool { return sqlState(err) == "23505" }

// IsSerializationError reports serialization_failure or deadlock_detected,
// both of which may succeed on retry.
func IsSerializationError(err error) bool {
	return slices.Contains([]string{"40001", "40P01"}, sqlState(err))
}
