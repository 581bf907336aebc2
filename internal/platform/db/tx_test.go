package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"matching index", &pgconn.PgError{Code: "23505", ConstraintName: "booking_active_slot_uq"}, "booking_active_slot_uq", true},
		{"any constraint", &pgconn.PgError{Code: "23505", ConstraintName: "participant_ref_key"}, "", true},
		{"other index", &pgconn.PgError{Code: "23505", ConstraintName: "participant_ref_key"}, "booking_active_slot_uq", false},
		{"other code", &pgconn.PgError{Code: "23503"}, "", false},
		{"wrapped", fmt.Errorf("insert booking: %w", &pgconn.PgError{Code: "23505"}), "", true},
		{"plain error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err, tt.constraint); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if TxFromContext(context.Background()) != nil {
		t.Error("expected no transaction in a bare context")
	}
}

func TestLockKey_RequiresTransaction(t *testing.T) {
	tr := NewTransactor(nil)
	if err := tr.LockKey(context.Background(), "slot"); err == nil {
		t.Error("expected error when locking outside a transaction")
	}
}
