package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/northbridge/tenderops/internal/models"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *AlertStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewAlertStore(mock)
}

func TestAcknowledge_FirstAckUpdatesRow(t *testing.T) {
	mock, store := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectExec(`UPDATE alert_history SET acknowledged = TRUE`).
		WithArgs(id, "u1", now, "reviewed", "handled it", (*int)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.Acknowledge(context.Background(), id, "u1", "reviewed", "handled it", nil, now); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAcknowledge_SecondAckIsNoOp(t *testing.T) {
	mock, store := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	// The guarded UPDATE touches no rows; the existence probe confirms the
	// alert is real, so the result is the already-acknowledged sentinel.
	mock.ExpectExec(`UPDATE alert_history SET acknowledged = TRUE`).
		WithArgs(id, "u1", now, "", "", (*int)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM alert_history WHERE id = \$1\)`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := store.Acknowledge(context.Background(), id, "u1", "", "", nil, now)
	if !errors.Is(err, models.ErrAlreadyAcknowledged) {
		t.Fatalf("Acknowledge() error = %v, want ErrAlreadyAcknowledged", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAcknowledge_UnknownAlert(t *testing.T) {
	mock, store := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectExec(`UPDATE alert_history SET acknowledged = TRUE`).
		WithArgs(id, "u1", now, "", "", (*int)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM alert_history WHERE id = \$1\)`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err := store.Acknowledge(context.Background(), id, "u1", "", "", nil, now)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Acknowledge() error = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestClaimEscalation(t *testing.T) {
	tests := []struct {
		name string
		rows int64
		want bool
	}{
		{"unclaimed row is claimed", 1, true},
		{"already claimed or acked", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, store := newMockStore(t)
			id := uuid.New()
			now := time.Now()

			mock.ExpectExec(`UPDATE alert_history SET escalated = TRUE`).
				WithArgs(id, now).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.rows))

			got, err := store.ClaimEscalation(context.Background(), id, now)
			if err != nil {
				t.Fatalf("ClaimEscalation() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ClaimEscalation() = %v, want %v", got, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestMarkAllRead_ReturnsRowCount(t *testing.T) {
	mock, store := newMockStore(t)
	now := time.Now()

	mock.ExpectExec(`UPDATE alert_history SET acknowledged = TRUE`).
		WithArgs("u1", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := store.MarkAllRead(context.Background(), "u1", now)
	if err != nil {
		t.Fatalf("MarkAllRead() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("MarkAllRead() = %d, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUnreadCount(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM alert_history WHERE acknowledged = FALSE`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := store.UnreadCount(context.Background())
	if err != nil {
		t.Fatalf("UnreadCount() error = %v", err)
	}
	if n != 7 {
		t.Fatalf("UnreadCount() = %d, want 7", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
