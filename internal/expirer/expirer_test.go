package expirer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FedePlevak/Fila0/internal/order/app/core"
	"github.com/FedePlevak/Fila0/internal/order/domain/models"
	"github.com/FedePlevak/Fila0/internal/xpkg/config"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

type fakeStore struct {
	ready        []models.Order
	unpaid       []models.Order
	readyCutoff  time.Time
	unpaidCutoff time.Time
	unpaidCalled bool
}

func (f *fakeStore) ListReadyBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	f.readyCutoff = cutoff
	return f.ready, nil
}

func (f *fakeStore) ListUnpaidBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	f.unpaidCalled = true
	f.unpaidCutoff = cutoff
	return f.unpaid, nil
}

type fakeLifecycle struct {
	expired   []string
	cancelled []string
	errs      map[string]error
}

func (f *fakeLifecycle) Expire(ctx context.Context, orderID string) (models.Order, error) {
	if err := f.errs[orderID]; err != nil {
		return models.Order{}, err
	}
	f.expired = append(f.expired, orderID)
	return models.Order{OrderID: orderID, Status: models.StatusExpired}, nil
}

func (f *fakeLifecycle) CancelUnconfirmed(ctx context.Context, orderID string) (models.Order, error) {
	if err := f.errs[orderID]; err != nil {
		return models.Order{}, err
	}
	f.cancelled = append(f.cancelled, orderID)
	return models.Order{OrderID: orderID, Status: models.StatusCancelledUnpaid}, nil
}

func testSweeper(t *testing.T, store *fakeStore, lifecycle *fakeLifecycle, policies config.Policies) *Sweeper {
	t.Helper()
	mylog, err := logger.New("disabled")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	s := NewSweeper(store, lifecycle, policies, mylog)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSweepExpiresReadyOrders(t *testing.T) {
	store := &fakeStore{
		ready: []models.Order{
			{OrderID: "a", Status: models.StatusReady},
			{OrderID: "b", Status: models.StatusReady},
		},
	}
	lifecycle := &fakeLifecycle{}
	s := testSweeper(t, store, lifecycle, config.Policies{ReadyExpiry: 30 * time.Minute})

	s.Sweep(context.Background())

	if len(lifecycle.expired) != 2 {
		t.Fatalf("expired = %v, want [a b]", lifecycle.expired)
	}
	wantCutoff := s.now().Add(-30 * time.Minute)
	if !store.readyCutoff.Equal(wantCutoff) {
		t.Errorf("cutoff = %v, want %v", store.readyCutoff, wantCutoff)
	}
}

func TestSweepToleratesLostRaces(t *testing.T) {
	store := &fakeStore{
		ready: []models.Order{
			{OrderID: "picked-up", Status: models.StatusReady},
			{OrderID: "already-expired", Status: models.StatusReady},
			{OrderID: "still-waiting", Status: models.StatusReady},
		},
	}
	lifecycle := &fakeLifecycle{errs: map[string]error{
		"picked-up":       core.ErrConflict,
		"already-expired": core.ErrInvalidTransition,
	}}
	s := testSweeper(t, store, lifecycle, config.Policies{ReadyExpiry: 30 * time.Minute})

	s.Sweep(context.Background())

	if len(lifecycle.expired) != 1 || lifecycle.expired[0] != "still-waiting" {
		t.Errorf("expired = %v, want [still-waiting]", lifecycle.expired)
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	store := &fakeStore{
		ready: []models.Order{
			{OrderID: "broken", Status: models.StatusReady},
			{OrderID: "fine", Status: models.StatusReady},
		},
	}
	lifecycle := &fakeLifecycle{errs: map[string]error{
		"broken": errors.New("connection reset"),
	}}
	s := testSweeper(t, store, lifecycle, config.Policies{ReadyExpiry: 30 * time.Minute})

	s.Sweep(context.Background())

	if len(lifecycle.expired) != 1 || lifecycle.expired[0] != "fine" {
		t.Errorf("expired = %v, want [fine]", lifecycle.expired)
	}
}

func TestSweepCancelsUnconfirmedPayments(t *testing.T) {
	store := &fakeStore{
		unpaid: []models.Order{
			{OrderID: "stale", Status: models.StatusCreated, PaymentMethod: models.PaymentOnline},
		},
	}
	lifecycle := &fakeLifecycle{}
	s := testSweeper(t, store, lifecycle, config.Policies{
		ReadyExpiry:   30 * time.Minute,
		PaymentWindow: 15 * time.Minute,
	})

	s.Sweep(context.Background())

	if len(lifecycle.cancelled) != 1 || lifecycle.cancelled[0] != "stale" {
		t.Errorf("cancelled = %v, want [stale]", lifecycle.cancelled)
	}
	wantCutoff := s.now().Add(-15 * time.Minute)
	if !store.unpaidCutoff.Equal(wantCutoff) {
		t.Errorf("cutoff = %v, want %v", store.unpaidCutoff, wantCutoff)
	}
}

func TestZeroPaymentWindowDisablesUnpaidSweep(t *testing.T) {
	store := &fakeStore{
		unpaid: []models.Order{
			{OrderID: "stale", Status: models.StatusCreated, PaymentMethod: models.PaymentOnline},
		},
	}
	lifecycle := &fakeLifecycle{}
	s := testSweeper(t, store, lifecycle, config.Policies{ReadyExpiry: 30 * time.Minute})

	s.Sweep(context.Background())

	if store.unpaidCalled {
		t.Error("payment window 0 must skip the unpaid sweep entirely")
	}
	if len(lifecycle.cancelled) != 0 {
		t.Errorf("cancelled = %v, want none", lifecycle.cancelled)
	}
}
