package brokermessage

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/FedePlevak/Fila0/internal/order/app/core"
	"github.com/FedePlevak/Fila0/internal/order/domain/dto"
	"github.com/FedePlevak/Fila0/internal/order/domain/models"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

const relayConsumerName = "order-feed-relay"

// OrderGetter loads current order state for a relayed event.
type OrderGetter interface {
	Get(ctx context.Context, orderID string) (models.Order, error)
}

// FeedRelay folds status mutations committed by other processes into
// the in-process hub. The expiry scheduler writes the store directly
// and announces only on the orders exchange; without the relay, boards
// and tracking views connected to this process would never see an
// order expire.
type FeedRelay struct {
	mb     *RabbitMQ
	orders OrderGetter
	feed   core.IFeed
	mylog  logger.Logger
}

func NewFeedRelay(mb *RabbitMQ, orders OrderGetter, feed core.IFeed, mylog logger.Logger) *FeedRelay {
	return &FeedRelay{
		mb:     mb,
		orders: orders,
		feed:   feed,
		mylog:  mylog,
	}
}

// Run consumes order events until the context ends, re-subscribing
// after broker failures.
func (fr *FeedRelay) Run(ctx context.Context) {
	for {
		events, err := fr.mb.ConsumeOrderEvents(ctx, relayConsumerName)
		if err != nil {
			fr.mylog.Action("feed_relay_consume_failed").Error("Failed to consume order events", err)
		} else if !fr.work(ctx, events) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnInterval):
		}
	}
}

// work returns false when the context ended and true when the delivery
// channel closed and consuming should restart.
func (fr *FeedRelay) work(ctx context.Context, events <-chan amqp.Delivery) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-events:
			if !ok {
				return true
			}
			fr.process(ctx, msg)
		}
	}
}

func (fr *FeedRelay) process(ctx context.Context, msg amqp.Delivery) {
	var ev dto.OrderEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		fr.mylog.Action("feed_relay_bad_event").Error("Failed to decode order event", err)
		return
	}

	// The event only names the status change; subscribers get full state.
	order, err := fr.orders.Get(ctx, ev.OrderID)
	if err != nil {
		fr.mylog.Action("feed_relay_fetch_failed").
			Error("Failed to load order for feed", err, "order_id", ev.OrderID)
		return
	}

	// Mutations this process committed itself are already in the hub;
	// the per-order recency check downstream drops those duplicates.
	fr.feed.Publish(order)
}
