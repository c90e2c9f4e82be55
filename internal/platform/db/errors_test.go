package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert reservation: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "reservation_practitioner_slot_uq",
	})

	name, ok := UniqueViolation(err)
	if !ok {
		t.Fatal("expected unique violation")
	}
	if name != "reservation_practitioner_slot_uq" {
		t.Errorf("expected constraint name, got %q", name)
	}
}

func TestUniqueViolation_OtherErrors(t *testing.T) {
	if _, ok := UniqueViolation(errors.New("boom")); ok {
		t.Error("plain error must not be a unique violation")
	}
	if _, ok := UniqueViolation(&pgconn.PgError{Code: "23503"}); ok {
		t.Error("foreign key violation must not be a unique violation")
	}
	if _, ok := UniqueViolation(nil); ok {
		t.Error("nil must not be a unique violation")
	}
}
