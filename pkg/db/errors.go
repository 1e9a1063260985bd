package db

import (
	"errors"
	"strings"

	pkgerrors "github.com/Kopi-Koubou/aura-backend/pkg/errors"
	"gorm.io/gorm"
)

// IsUniqueViolation reports whether err was caused by a unique constraint. When
// constraintName is provided, only violations of that constraint match.
// Postgres errors are inspected through their SQLSTATE; other dialects (SQLite
// in tests) fall back to the driver message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if pg, ok := pkgerrors.PostgresFields(err); ok {
		if !pg.IsUniqueViolation() {
			return false
		}
		return constraintName == "" || pg.Constraint == constraintName || strings.Contains(pg.Message, constraintName)
	}

	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// IsNotFound reports whether err is GORM's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
