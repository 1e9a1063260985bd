package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
		verbatim  bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true, verbatim: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, verbatim: true},
		{code: CodeNotFound, status: http.StatusNotFound, verbatim: true},
		{code: CodeConflict, status: http.StatusBadRequest, verbatim: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, retryable: true, verbatim: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusInternalServerError, retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
		if meta.Verbatim != tt.verbatim {
			t.Fatalf("code %s expected verbatim %v got %v", tt.code, tt.verbatim, meta.Verbatim)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
	if meta.PublicMessage != genericFailureMessage {
		t.Fatalf("expected generic message, got %q", meta.PublicMessage)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if wrapped.Error() != "CONFLICT: ctx: boom" {
		t.Fatalf("unexpected error string %q", wrapped.Error())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeNotFound, "no entry")
	if got := As(err); got == nil || got.Code() != CodeNotFound {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("untyped errors should report internal code")
	}
}

func TestDumpCapturesPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "referral_redemptions_redeemed_by_user_id_key", TableName: "referral_redemptions"}
	err := Wrap(CodeDependency, fmt.Errorf("insert: %w", pgErr), "record redemption")

	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGTable != "referral_redemptions" {
		t.Fatalf("postgres fields not captured: %+v", dump)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(dump.Chain))
	}

	fields, ok := PostgresFields(err)
	if !ok || !fields.IsUniqueViolation() {
		t.Fatalf("expected unique violation fields, got %+v", fields)
	}
}

func TestPostgresFieldsFromLibPQ(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505", Constraint: "share_events_deep_link_id_key"})
	fields, ok := PostgresFields(err)
	if !ok {
		t.Fatal("expected lib/pq error to be recognised")
	}
	if fields.Constraint != "share_events_deep_link_id_key" || !fields.IsUniqueViolation() {
		t.Fatalf("unexpected fields %+v", fields)
	}
	if _, ok := PostgresFields(stdErrors.New("plain")); ok {
		t.Fatal("plain errors should not produce postgres fields")
	}
}
