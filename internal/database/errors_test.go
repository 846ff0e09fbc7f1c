package database

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassPermanent},
		{"serialization", &pq.Error{Code: "40001"}, ErrorClassSerialization},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrorClassDeadlock},
		{"lock not available", &pq.Error{Code: "55P03"}, ErrorClassTransient},
		{"unique violation", &pq.Error{Code: "23505"}, ErrorClassPermanent},
		{"wrapped deadlock", fmt.Errorf("insert order: %w", &pq.Error{Code: "40P01"}), ErrorClassDeadlock},
		{"no rows", sql.ErrNoRows, ErrorClassPermanent},
		{"domain error", ErrEmptyCart, ErrorClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&pq.Error{Code: "40001"}) {
		t.Error("serialization failures should be retryable")
	}
	if IsRetryable(ErrDuplicateEmail) {
		t.Error("domain errors should not be retryable")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("create user: %w", &pq.Error{Code: "23505", Constraint: "users_email_key"})

	if !IsUniqueViolation(err, "") {
		t.Error("expected unique violation without constraint filter")
	}
	if !IsUniqueViolation(err, "users_email_key") {
		t.Error("expected unique violation on users_email_key")
	}
	if IsUniqueViolation(err, "categories_name_key") {
		t.Error("constraint filter should not match a different constraint")
	}
	if IsUniqueViolation(&pq.Error{Code: "23503"}, "") {
		t.Error("foreign key violation is not a unique violation")
	}
}

func TestIsLockNotAvailable(t *testing.T) {
	if !IsLockNotAvailable(fmt.Errorf("lock cart: %w", &pq.Error{Code: "55P03"})) {
		t.Error("expected wrapped 55P03 to be a lock failure")
	}
	if IsLockNotAvailable(&pq.Error{Code: "40P01"}) {
		t.Error("deadlock is not a lock-timeout failure")
	}
}
