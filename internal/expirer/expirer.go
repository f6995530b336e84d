package expirer

import (
	"context"
	"errors"
	"time"

	"github.com/FedePlevak/Fila0/internal/order/app/core"
	"github.com/FedePlevak/Fila0/internal/order/domain/models"
	"github.com/FedePlevak/Fila0/internal/xpkg/config"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

// Store lists the orders a sweep may act on.
type Store interface {
	ListReadyBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	ListUnpaidBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

// Lifecycle applies the scheduler-owned transitions.
type Lifecycle interface {
	Expire(ctx context.Context, orderID string) (models.Order, error)
	CancelUnconfirmed(ctx context.Context, orderID string) (models.Order, error)
}

// Sweeper drives the time-based policies: ready orders nobody picked up
// become expired_not_picked_up, and online orders whose payment never
// confirmed become cancelled_unpaid. Losing a race against staff or the
// payment gateway is normal and is skipped, not retried.
type Sweeper struct {
	store     Store
	lifecycle Lifecycle
	policies  config.Policies
	mylog     logger.Logger
	now       func() time.Time
}

func NewSweeper(store Store, lifecycle Lifecycle, policies config.Policies, mylog logger.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		lifecycle: lifecycle,
		policies:  policies,
		mylog:     mylog,
		now:       time.Now,
	}
}

// Run sweeps on every tick until the context ends.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.policies.SweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs both policies once.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.sweepReady(ctx)
	if s.policies.PaymentWindow > 0 {
		s.sweepUnpaid(ctx)
	}
}

func (s *Sweeper) sweepReady(ctx context.Context) {
	mylog := s.mylog.Action("sweep_ready")

	cutoff := s.now().Add(-s.policies.ReadyExpiry)
	orders, err := s.store.ListReadyBefore(ctx, cutoff)
	if err != nil {
		mylog.Error("Failed to list expirable orders", err)
		return
	}

	for _, o := range orders {
		if _, err := s.lifecycle.Expire(ctx, o.OrderID); err != nil {
			if errors.Is(err, core.ErrConflict) || errors.Is(err, core.ErrInvalidTransition) {
				// Picked up or already expired between list and sweep.
				mylog.Debug("Order advanced before expiry", "order_id", o.OrderID)
				continue
			}
			mylog.Error("Failed to expire order", err, "order_id", o.OrderID)
			continue
		}
		mylog.Info("Order expired, not picked up", "order_id", o.OrderID, "pickup_code", o.PickupCode)
	}
}

func (s *Sweeper) sweepUnpaid(ctx context.Context) {
	mylog := s.mylog.Action("sweep_unpaid")

	cutoff := s.now().Add(-s.policies.PaymentWindow)
	orders, err := s.store.ListUnpaidBefore(ctx, cutoff)
	if err != nil {
		mylog.Error("Failed to list unconfirmed orders", err)
		return
	}

	for _, o := range orders {
		if _, err := s.lifecycle.CancelUnconfirmed(ctx, o.OrderID); err != nil {
			if errors.Is(err, core.ErrConflict) || errors.Is(err, core.ErrInvalidTransition) {
				mylog.Debug("Order advanced before cancellation", "order_id", o.OrderID)
				continue
			}
			mylog.Error("Failed to cancel unconfirmed order", err, "order_id", o.OrderID)
			continue
		}
		mylog.Info("Unconfirmed order cancelled", "order_id", o.OrderID)
	}
}
