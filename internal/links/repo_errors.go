package links

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repository maps to error kinds.
const (
	pgUniqueViolation       = "23505"
	pgCheckViolation        = "23514"
	pgInvalidTextRepr       = "22P02"
	pgStringDataRightTrunc  = "22001"
	pgInvalidParameterValue = "22023"
)

func pgErrorCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", ""
	}
	return pgErr.Code, pgErr.ConstraintName
}

func isShortCodeUniqueViolation(err error) bool {
	code, constraint := pgErrorCode(err)
	return code == pgUniqueViolation && constraint == "links_short_code_unique"
}

// isInvalidInput reports errors caused by the values sent, such as a failed
// CHECK constraint or an unknown enum label.
func isInvalidInput(err error) bool {
	code, _ := pgErrorCode(err)
	switch code {
	case pgCheckViolation, pgInvalidTextRepr, pgStringDataRightTrunc, pgInvalidParameterValue:
		return true
	}
	return false
}
