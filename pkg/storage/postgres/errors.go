package postgres

import (
	"errors"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeInvalidText          = "22P02"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

const openOrderConstraint = "orders_open_listing_buyer_key"

// mapErr translates driver errors into storage sentinels and error kinds.
// Errors already carrying a kind pass through.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		if pgErr.ConstraintName == openOrderConstraint {
			return storage.ErrDuplicateOpenOrder
		}
	case codeInvalidText:
		// Malformed ids cannot name a row.
		return storage.ErrNotFound
	case codeCheckViolation:
		return apperrors.Wrap(apperrors.KindIntegrityViolation, err, "balance constraint violated")
	case codeSerializationFailure, codeDeadlockDetected:
		return apperrors.Wrap(apperrors.KindConflict, err, "concurrent update, please retry")
	}
	return err
}

// errNoRows marks updates that matched nothing.
var errNoRows = pgx.ErrNoRows
