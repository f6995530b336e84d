package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPickupCodeClashDetection(t *testing.T) {
	clash := &pgconn.PgError{
		Code:           uniqueViolation,
		ConstraintName: "idx_orders_active_pickup_code",
	}
	if !isPickupCodeClash(fmt.Errorf("failed to insert order: %w", clash)) {
		t.Error("wrapped unique violation on the active pickup-code index must trigger a retry")
	}

	otherConstraint := &pgconn.PgError{
		Code:           uniqueViolation,
		ConstraintName: "orders_pkey",
	}
	if isPickupCodeClash(otherConstraint) {
		t.Error("unique violation on another constraint must not trigger a retry")
	}

	if isPickupCodeClash(&pgconn.PgError{Code: "23503", ConstraintName: "idx_orders_active_pickup_code"}) {
		t.Error("non-unique-violation codes must not trigger a retry")
	}

	if isPickupCodeClash(errors.New("connection reset")) {
		t.Error("plain errors must not trigger a retry")
	}
}
