package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/dof-service/internal/domain"
)

func TestTransitionErrorsAreDistinct(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
		code     string
		status   int
	}{
		{"invalid transition", NewInvalidTransition(domain.CaseStatusDraft, domain.CaseStatusClosed), domain.ErrInvalidTransition, "INVALID_TRANSITION", http.StatusConflict},
		{"not authorized", NewNotAuthorized("quality manager required", nil), domain.ErrUnauthorized, "NOT_AUTHORIZED", http.StatusForbidden},
		{"precondition", NewPreconditionFailed("action plan required", nil), domain.ErrPreconditionFailed, "PRECONDITION_FAILED", http.StatusUnprocessableEntity},
		{"not found", NewNotFound("case", nil), domain.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.sentinel) {
				t.Fatalf("errors.Is(%v, %v) = false", tc.err, tc.sentinel)
			}
			de := ToDomainError(tc.err)
			if de.Code != tc.code || de.HTTPStatus != tc.status {
				t.Fatalf("got %s/%d, want %s/%d", de.Code, de.HTTPStatus, tc.code, tc.status)
			}
		})
	}
}

func TestToDomainErrorMapsNoRows(t *testing.T) {
	de := ToDomainError(fmt.Errorf("load case: %w", pgx.ErrNoRows))
	if de.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %s", de.Code)
	}
	if !IsNotFound(fmt.Errorf("wrapped: %w", domain.ErrNotFound)) {
		t.Fatal("expected IsNotFound for wrapped sentinel")
	}
}

func TestToDomainErrorMapsMalformedKey(t *testing.T) {
	malformed := fmt.Errorf("scan case: %w", &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "not-a-uuid"`})
	if !IsNotFound(malformed) {
		t.Fatal("expected IsNotFound for invalid uuid text")
	}
	if de := ToDomainError(malformed); de.Code != "NOT_FOUND" || de.HTTPStatus != http.StatusNotFound {
		t.Fatalf("expected NOT_FOUND/404, got %s/%d", de.Code, de.HTTPStatus)
	}
	unique := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	if IsNotFound(unique) || ToDomainError(unique).Code != "INTERNAL_ERROR" {
		t.Fatal("other postgres errors must not read as not found")
	}
}

func TestToDomainErrorDefaultsToInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	if de.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", de.HTTPStatus)
	}
	if ToDomainError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}
