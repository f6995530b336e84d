package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FedePlevak/Fila0/internal/order/domain/dto"
	"github.com/FedePlevak/Fila0/internal/order/domain/models"
)

type IDB interface {
	Close() error
	IsAlive() error
	GetPool() *pgxpool.Pool
}

// PickupCodeFunc produces a pickup code given a predicate over the
// codes currently taken by the vendor's active orders. The repo calls
// it inside the creation transaction.
type PickupCodeFunc func(taken func(code string) bool) (string, error)

type IOrderRepo interface {
	// Create commits order, line items, pickup code and initial status
	// log as one transaction.
	Create(ctx context.Context, order models.Order, genCode PickupCodeFunc) (models.Order, error)
	Get(ctx context.Context, orderID string) (models.Order, error)
	History(ctx context.Context, orderID string) ([]models.StatusLogEntry, error)
	// Transition applies expected -> target with a compare-and-swap on
	// the stored status. Zero rows affected maps to ErrConflict (or
	// ErrOrderNotFound when the order does not exist).
	Transition(ctx context.Context, orderID string, expected, target models.Status, changedBy, paymentRef string) (models.Order, error)
	ListActive(ctx context.Context, vendorRelationID string) ([]models.Order, error)
	ListReadyBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	ListUnpaidBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type IBroker interface {
	Close() error
	PublishStatusChange(ctx context.Context, ev dto.OrderEvent) error
	PublishReadyNotification(ctx context.Context, n dto.ReadyNotification) error
}

// IFeed receives every committed order mutation for in-process
// subscribers (staff boards, customer tracking views).
type IFeed interface {
	Publish(order models.Order)
}
