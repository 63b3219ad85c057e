package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/devteam/internal/domain"
)

const sqlstateUniqueViolation = "23505"

type scannable interface {
	Scan(dest ...any) error
}

// pgTextArray keeps a nil slice from binding as SQL NULL.
func pgTextArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// wrapf annotates err with the operation and translates missing rows and
// unique violations into the matching domain sentinels.
func wrapf(err error, format string, args ...any) error {
	op := fmt.Sprintf(format, args...)
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.As(err, &pgErr) && pgErr.Code == sqlstateUniqueViolation:
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// expectOneRow reports domain.ErrNotFound when an UPDATE matched nothing.
func expectOneRow(tag pgconn.CommandTag, err error, format string, args ...any) error {
	if err != nil {
		return wrapf(err, format, args...)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrNotFound)
	}
	return nil
}
