package brokermessage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/FedePlevak/Fila0/internal/order/domain/dto"
	"github.com/FedePlevak/Fila0/internal/xpkg/config"
	xerrors "github.com/FedePlevak/Fila0/internal/xpkg/errors"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

const (
	OrdersExchange        = "orders_topic"
	NotificationsExchange = "notifications_fanout"
	NotificationsQueue    = "notifications_queue"
	NotificationsDLX      = "notifications_dlx"
	DeadNotificationsQ    = "notifications_dead"

	reconnInterval = 5 * time.Second
)

type RabbitMQ struct {
	ctx          context.Context
	cfg          config.RabbitMQ
	conn         *amqp.Connection
	ch           *amqp.Channel
	mylog        logger.Logger
	reconnecting bool
	mu           sync.Mutex
}

// New connects and declares the exchange topology: a topic exchange for
// per-vendor order events and a fanout exchange feeding the customer
// notification queue.
func New(ctx context.Context, rabbitmqCfg config.RabbitMQ, mylog logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{
		ctx:   ctx,
		cfg:   rabbitmqCfg,
		mylog: mylog,
	}
	if err := r.connect(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(fmt.Sprintf("amqp://%s:%s@%s:%s/%s",
		r.cfg.User,
		r.cfg.Password,
		r.cfg.Host,
		r.cfg.Port,
		r.cfg.VHost,
	))
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	if err := ch.ExchangeDeclare(OrdersExchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(NotificationsExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(NotificationsDLX, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(DeadNotificationsQ, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(DeadNotificationsQ, "", NotificationsDLX, false, nil); err != nil {
		return err
	}

	// Nacked notifications land on the dead-letter queue for inspection
	// instead of being redelivered or lost.
	if _, err := ch.QueueDeclare(NotificationsQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": NotificationsDLX,
	}); err != nil {
		return err
	}
	if err := ch.QueueBind(NotificationsQueue, "", NotificationsExchange, false, nil); err != nil {
		return err
	}

	r.conn = conn
	r.ch = ch
	return nil
}

func (r *RabbitMQ) IsAlive() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.conn.IsClosed() {
		return xerrors.ErrMBConn
	}
	if r.ch == nil || r.ch.IsClosed() {
		return xerrors.ErrMBCh
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}

// PublishStatusChange routes a committed mutation by vendor relation so
// staff-side consumers can bind per vendor.
func (r *RabbitMQ) PublishStatusChange(ctx context.Context, ev dto.OrderEvent) error {
	routingKey := "order.status." + ev.VendorRelationID
	return r.publish(ctx, OrdersExchange, routingKey, ev)
}

// PublishReadyNotification emits the "your order is ready" event.
func (r *RabbitMQ) PublishReadyNotification(ctx context.Context, n dto.ReadyNotification) error {
	return r.publish(ctx, NotificationsExchange, "", n)
}

func (r *RabbitMQ) publish(ctx context.Context, exchange, routingKey string, message any) error {
	if err := r.IsAlive(); err != nil {
		go r.reconnect(r.ctx)
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return r.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// ConsumeNotifications delivers the customer notification stream.
func (r *RabbitMQ) ConsumeNotifications(ctx context.Context, consumerName string) (<-chan amqp.Delivery, error) {
	return r.ch.ConsumeWithContext(ctx, NotificationsQueue, consumerName, false, false, false, false, nil)
}

// ConsumeOrderEvents delivers every status mutation published to the
// orders exchange on a private server-named queue. Events are auto-acked;
// a consumer that misses some recovers by re-fetching full state.
func (r *RabbitMQ) ConsumeOrderEvents(ctx context.Context, consumerName string) (<-chan amqp.Delivery, error) {
	if err := r.IsAlive(); err != nil {
		go r.reconnect(r.ctx)
		return nil, err
	}

	q, err := r.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, err
	}
	if err := r.ch.QueueBind(q.Name, "order.status.#", OrdersExchange, false, nil); err != nil {
		return nil, err
	}
	return r.ch.ConsumeWithContext(ctx, q.Name, consumerName, true, true, false, false, nil)
}

func (r *RabbitMQ) reconnect(ctx context.Context) {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return
	}
	r.reconnecting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.reconnecting = false
		r.mu.Unlock()
	}()

	t := time.NewTicker(reconnInterval)
	defer t.Stop()
	log := r.mylog.Action("rabbitmq_reconnecting")

	for {
		select {
		case <-t.C:
			if err := r.connect(); err == nil {
				log.Info("rabbitmq reconnected")
				return
			}
			log.Warn("rabbitmq failed to reconnect")

		case <-ctx.Done():
			return
		}
	}
}
