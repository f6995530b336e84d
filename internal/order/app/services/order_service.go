package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/FedePlevak/Fila0/internal/order/app/core"
	"github.com/FedePlevak/Fila0/internal/order/domain/dto"
	"github.com/FedePlevak/Fila0/internal/order/domain/models"
	"github.com/FedePlevak/Fila0/internal/xpkg/config"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

type OrderService struct {
	orderRepo core.IOrderRepo
	broker    core.IBroker
	feed      core.IFeed
	policies  config.Policies
	mylog     logger.Logger
}

func NewOrderService(
	orderRepo core.IOrderRepo,
	broker core.IBroker,
	feed core.IFeed,
	policies config.Policies,
	mylog logger.Logger,
) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		broker:    broker,
		feed:      feed,
		policies:  policies,
		mylog:     mylog,
	}
}

// Create commits the cart as an immutable order. Snapshot, total,
// pickup code and the initial status land in one transaction; a failed
// creation leaves no partial order behind.
func (os *OrderService) Create(ctx context.Context, req dto.CreateOrderRequest) (models.Order, error) {
	mylog := os.mylog.Action("create_order")

	if req.VendorRelationID == "" {
		return models.Order{}, fmt.Errorf("%w: missing vendor relation id", core.ErrInvalidLineItem)
	}

	method := models.PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		return models.Order{}, fmt.Errorf("%w: payment method %q", core.ErrInvalidLineItem, req.PaymentMethod)
	}

	snapshot, err := BuildSnapshot(req.Cart)
	if err != nil {
		mylog.Warn("Rejected cart at checkout", "reason", err.Error())
		return models.Order{}, err
	}

	order := models.Order{
		OrderID:          uuid.NewString(),
		VendorRelationID: req.VendorRelationID,
		VendorName:       req.VendorName,
		Status:           models.StatusCreated,
		PaymentMethod:    method,
		Total:            snapshot.Total,
		Snapshot:         snapshot,
	}

	genCode := func(taken func(code string) bool) (string, error) {
		return GeneratePickupCode(taken, os.policies.PickupCode)
	}

	created, err := os.orderRepo.Create(ctx, order, genCode)
	if err != nil {
		if errors.Is(err, core.ErrDBConn) {
			mylog.Error("Failed to connect to db", err)
			return models.Order{}, fmt.Errorf("cannot connect to db: %w", err)
		}
		mylog.Error("Failed to save order record in db", err)
		return models.Order{}, err
	}

	mylog.With("order_id", created.OrderID, "pickup_code", created.PickupCode).
		Info("Order created successfully")

	os.announce(ctx, created, models.Status(""), "checkout")
	return created, nil
}

// Transition advances the order along the state machine. The expected
// status makes the write a compare-and-swap: a stale writer gets
// ErrConflict, an out-of-graph request gets ErrInvalidTransition, and
// in both cases the stored order is untouched.
func (os *OrderService) Transition(
	ctx context.Context,
	orderID string,
	target, expected models.Status,
	actor models.Role,
	changedBy string,
) (models.Order, error) {
	mylog := os.mylog.Action("transition").With("order_id", orderID, "target", string(target))

	if !target.Valid() || !expected.Valid() {
		return models.Order{}, fmt.Errorf("%w: unknown status", core.ErrInvalidTransition)
	}

	if !models.RoleMayTrigger(actor, expected, target) {
		mylog.Warn("Transition rejected for role", "role", string(actor))
		return models.Order{}, core.ErrForbidden
	}

	order, err := os.orderRepo.Get(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}

	if order.Status != expected {
		// The caller is acting on stale state; re-read and retry.
		return models.Order{}, core.ErrConflict
	}
	if !order.TransitionAllowed(target) {
		mylog.Warn("Illegal transition attempt", "from", string(order.Status))
		return models.Order{}, core.ErrInvalidTransition
	}

	paymentRef := ""
	updated, err := os.orderRepo.Transition(ctx, orderID, expected, target, changedBy, paymentRef)
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			mylog.Warn("Lost transition race", "from", string(expected))
		} else {
			mylog.Error("Failed to apply transition", err)
		}
		return models.Order{}, err
	}

	mylog.With("from", string(expected)).Info("Order status advanced")

	os.announce(ctx, updated, expected, changedBy)
	return updated, nil
}

// HandlePaymentEvent maps a gateway webhook onto the state machine:
// confirmation moves created -> paid, failure moves created ->
// cancelled_unpaid. Duplicate deliveries of the same event are treated
// as no-ops so the gateway can retry freely.
func (os *OrderService) HandlePaymentEvent(ctx context.Context, ev dto.PaymentEvent) (models.Order, error) {
	mylog := os.mylog.Action("payment_event").With("order_id", ev.OrderID, "event", ev.Event)

	var target models.Status
	switch ev.Event {
	case dto.PaymentEventConfirmed:
		target = models.StatusPaid
	case dto.PaymentEventFailed:
		target = models.StatusCancelledUnpaid
	default:
		return models.Order{}, fmt.Errorf("%w: unknown payment event %q", core.ErrInvalidTransition, ev.Event)
	}

	updated, err := os.orderRepo.Transition(ctx, ev.OrderID, models.StatusCreated, target, "payment-gateway", ev.PaymentRef)
	if err == nil {
		mylog.Info("Payment event applied")
		os.announce(ctx, updated, models.StatusCreated, "payment-gateway")
		return updated, nil
	}

	if errors.Is(err, core.ErrConflict) {
		// Redelivery after the order already advanced. Report current
		// state instead of failing the webhook.
		current, getErr := os.orderRepo.Get(ctx, ev.OrderID)
		if getErr != nil {
			return models.Order{}, getErr
		}
		mylog.Info("Duplicate payment event ignored", "status", string(current.Status))
		return current, nil
	}

	mylog.Error("Failed to apply payment event", err)
	return models.Order{}, err
}

// Expire moves a ready order that waited too long into
// expired_not_picked_up. Invoked by the expiry scheduler; losing a race
// against a staff pickup is expected and surfaces as ErrConflict.
func (os *OrderService) Expire(ctx context.Context, orderID string) (models.Order, error) {
	return os.Transition(ctx, orderID, models.StatusExpired, models.StatusReady, models.RoleScheduler, "expiry-scheduler")
}

// CancelUnconfirmed abandons an online order whose payment never
// confirmed within the configured window.
func (os *OrderService) CancelUnconfirmed(ctx context.Context, orderID string) (models.Order, error) {
	return os.Transition(ctx, orderID, models.StatusCancelledUnpaid, models.StatusCreated, models.RoleScheduler, "expiry-scheduler")
}

func (os *OrderService) Get(ctx context.Context, orderID string) (models.Order, error) {
	return os.orderRepo.Get(ctx, orderID)
}

func (os *OrderService) History(ctx context.Context, orderID string) ([]models.StatusLogEntry, error) {
	return os.orderRepo.History(ctx, orderID)
}

func (os *OrderService) ListActive(ctx context.Context, vendorRelationID string) ([]models.Order, error) {
	return os.orderRepo.ListActive(ctx, vendorRelationID)
}

// ListActiveQueues partitions the vendor's non-terminal orders into the
// three staff board columns. Terminal orders never show up here.
func (os *OrderService) ListActiveQueues(ctx context.Context, vendorRelationID string) (dto.Queues, error) {
	orders, err := os.orderRepo.ListActive(ctx, vendorRelationID)
	if err != nil {
		return dto.Queues{}, err
	}

	queues := dto.Queues{
		New:       []models.Order{},
		Preparing: []models.Order{},
		Ready:     []models.Order{},
	}

	for _, o := range orders {
		switch {
		case o.Status == models.StatusPaid,
			o.Status == models.StatusCreated && o.PaymentMethod == models.PaymentCounter:
			queues.New = append(queues.New, o)
		case o.Status == models.StatusInProgress:
			queues.Preparing = append(queues.Preparing, o)
		case o.Status == models.StatusReady:
			queues.Ready = append(queues.Ready, o)
		}
	}

	sortQueue(queues.New, os.policies.QueueOrdering)
	sortQueue(queues.Preparing, os.policies.QueueOrdering)
	sortQueue(queues.Ready, os.policies.QueueOrdering)

	return queues, nil
}

func sortQueue(orders []models.Order, ordering string) {
	sort.SliceStable(orders, func(i, j int) bool {
		if ordering == config.OrderOldestFirst {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

// announce fans a committed mutation out to the in-process feed and the
// message broker. Delivery failure is logged and never rolls back or
// fails the transition that caused it.
func (os *OrderService) announce(ctx context.Context, order models.Order, oldStatus models.Status, changedBy string) {
	if os.feed != nil {
		os.feed.Publish(order)
	}

	if os.broker == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), core.WaitTime*time.Second)
	defer cancel()

	ev := dto.OrderEvent{
		OrderID:          order.OrderID,
		VendorRelationID: order.VendorRelationID,
		OldStatus:        oldStatus,
		NewStatus:        order.Status,
		PickupCode:       order.PickupCode,
		ChangedBy:        changedBy,
		OccurredAt:       order.UpdatedAt,
	}
	if err := os.broker.PublishStatusChange(pubCtx, ev); err != nil {
		os.mylog.Action("publish_status_change_failed").
			Error("Failed to publish status change", err, "order_id", order.OrderID)
	}

	if order.Status == models.StatusReady {
		n := dto.ReadyNotification{
			OrderID:    order.OrderID,
			PickupCode: order.PickupCode,
			VendorName: order.VendorName,
		}
		if err := os.broker.PublishReadyNotification(pubCtx, n); err != nil {
			os.mylog.Action("publish_notification_failed").
				Error("Failed to publish ready notification", err, "order_id", order.OrderID)
		}
	}
}
