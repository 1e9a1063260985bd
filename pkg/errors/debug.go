package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// pgUniqueViolation is the SQLSTATE Postgres reports for unique constraint hits.
const pgUniqueViolation = "23505"

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// PGFields is the subset of a driver error used for logging and constraint checks.
type PGFields struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// IsUniqueViolation reports whether the fields describe a unique constraint hit.
func (f PGFields) IsUniqueViolation() bool {
	return f.Code == pgUniqueViolation
}

// PostgresFields extracts driver details from either pgx or lib/pq errors.
func PostgresFields(err error) (PGFields, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return PGFields{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PGFields{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return PGFields{}, false
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	if pg, ok := PostgresFields(err); ok {
		d.PGCode = pg.Code
		d.PGConstraint = pg.Constraint
		d.PGTable = pg.Table
		d.PGColumn = pg.Column
		d.PGDetail = pg.Detail
		d.PGMessage = pg.Message
	}
	return d
}
