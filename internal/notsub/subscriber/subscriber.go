package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	brokermessage "github.com/FedePlevak/Fila0/internal/order/adapter/broker_message"
	"github.com/FedePlevak/Fila0/internal/order/domain/dto"
	"github.com/FedePlevak/Fila0/internal/xpkg/config"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

const consumerName = "notification-subscriber"

// Notification consumes "order ready" events and hands them to the
// delivery channel. Actual push delivery is an external concern; this
// subscriber logs and prints the event, acking only after handling.
type Notification struct {
	cfg    *config.Config
	mylog  logger.Logger
	mb     *brokermessage.RabbitMQ
	ctx    context.Context
	appCtx context.Context

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewNotification(ctx, appCtx context.Context, cfg *config.Config, mylog logger.Logger) *Notification {
	return &Notification{
		ctx:    ctx,
		appCtx: appCtx,
		cfg:    cfg,
		mylog:  mylog,
	}
}

// Run connects to the broker and consumes until the context ends.
func (n *Notification) Run() error {
	mylog := n.mylog.Action("run_notifications")

	mb, err := brokermessage.New(n.appCtx, *n.cfg.RMQ, n.mylog)
	if err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}
	n.mu.Lock()
	n.mb = mb
	n.mu.Unlock()
	mylog.Action("mb_connected").Info("Successful message broker connection")

	messageBus, err := mb.ConsumeNotifications(n.appCtx, consumerName)
	if err != nil {
		return fmt.Errorf("failed to consume notifications: %w", err)
	}

	n.work(messageBus)
	return nil
}

func (n *Notification) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.mylog.Action("graceful_shutdown_started").Info("Shutting down")

	n.wg.Wait()

	if n.mb != nil {
		if err := n.mb.Close(); err != nil {
			n.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
			return fmt.Errorf("mb close: %w", err)
		}
		n.mylog.Action("mb_closed").Info("Message broker closed")
	}

	n.mylog.Action("graceful_shutdown_completed").Info("Successfully shut down")
	return nil
}

func (n *Notification) work(notifCh <-chan amqp.Delivery) {
	for {
		select {
		case <-n.ctx.Done():
			n.mylog.Action("work_shutdown").Info("Stopping message consumption due to context cancel")
			return

		case msg, ok := <-notifCh:
			if !ok {
				return
			}
			n.wg.Add(1)
			go func(msg amqp.Delivery) {
				defer n.wg.Done()

				if err := n.processMsg(msg); err != nil {
					n.mylog.Action("process_msg_failed").Error("Failed to process notification", err)
					// Poison messages are not requeued.
					if nackErr := msg.Nack(false, false); nackErr != nil {
						n.mylog.Action("nack_failed").Error("Failed to nack", nackErr)
					}
				}
			}(msg)
		}
	}
}

func (n *Notification) processMsg(msg amqp.Delivery) error {
	var notification dto.ReadyNotification
	if err := json.Unmarshal(msg.Body, &notification); err != nil {
		return fmt.Errorf("unmarshal notification: %w", err)
	}

	n.mylog.Action("notification_received").
		Info("Order ready for pickup",
			"order_id", notification.OrderID,
			"pickup_code", notification.PickupCode,
			"vendor_name", notification.VendorName,
		)

	fmt.Printf("Your order at %s is ready! Pickup code: %s\n",
		notification.VendorName, notification.PickupCode)

	if err := msg.Ack(false); err != nil {
		return fmt.Errorf("acknowledge message: %w", err)
	}
	return nil
}
