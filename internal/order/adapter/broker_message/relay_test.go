package brokermessage

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/FedePlevak/Fila0/internal/order/app/core"
	"github.com/FedePlevak/Fila0/internal/order/domain/dto"
	"github.com/FedePlevak/Fila0/internal/order/domain/models"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

type fakeGetter struct {
	orders map[string]models.Order
}

func (f *fakeGetter) Get(ctx context.Context, orderID string) (models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return models.Order{}, core.ErrOrderNotFound
	}
	return order, nil
}

type fakeFeed struct {
	mu        sync.Mutex
	published []models.Order
}

func (f *fakeFeed) Publish(order models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, order)
}

func testRelay(t *testing.T, getter *fakeGetter, feed *fakeFeed) *FeedRelay {
	t.Helper()
	mylog, err := logger.New("disabled")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewFeedRelay(nil, getter, feed, mylog)
}

func eventBody(t *testing.T, ev dto.OrderEvent) []byte {
	t.Helper()
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return body
}

func TestRelayPublishesFullState(t *testing.T) {
	readyAt := time.Now().Add(-time.Hour)
	stored := models.Order{
		OrderID:          "o1",
		VendorRelationID: "v1",
		PickupCode:       "4711",
		Status:           models.StatusExpired,
		UpdatedAt:        time.Now(),
		ReadyAt:          &readyAt,
	}
	getter := &fakeGetter{orders: map[string]models.Order{"o1": stored}}
	feed := &fakeFeed{}
	relay := testRelay(t, getter, feed)

	// An expiry committed by another process arrives as a broker event.
	relay.process(context.Background(), amqp.Delivery{Body: eventBody(t, dto.OrderEvent{
		OrderID:          "o1",
		VendorRelationID: "v1",
		OldStatus:        models.StatusReady,
		NewStatus:        models.StatusExpired,
		ChangedBy:        "expiry-scheduler",
	})})

	if len(feed.published) != 1 {
		t.Fatalf("published = %d, want 1", len(feed.published))
	}
	got := feed.published[0]
	if got.Status != models.StatusExpired {
		t.Errorf("status = %s, want expired_not_picked_up", got.Status)
	}
	if got.PickupCode != "4711" || got.ReadyAt == nil {
		t.Errorf("relayed order must carry full state, got %+v", got)
	}
}

func TestRelaySkipsUnknownOrder(t *testing.T) {
	getter := &fakeGetter{orders: map[string]models.Order{}}
	feed := &fakeFeed{}
	relay := testRelay(t, getter, feed)

	relay.process(context.Background(), amqp.Delivery{Body: eventBody(t, dto.OrderEvent{
		OrderID: "gone",
	})})

	if len(feed.published) != 0 {
		t.Errorf("published = %d, want 0 for unknown order", len(feed.published))
	}
}

func TestRelaySkipsMalformedEvent(t *testing.T) {
	getter := &fakeGetter{orders: map[string]models.Order{}}
	feed := &fakeFeed{}
	relay := testRelay(t, getter, feed)

	relay.process(context.Background(), amqp.Delivery{Body: []byte("not json")})

	if len(feed.published) != 0 {
		t.Errorf("published = %d, want 0 for malformed event", len(feed.published))
	}
}

func TestRelayWorkLifecycle(t *testing.T) {
	relay := testRelay(t, &fakeGetter{}, &fakeFeed{})

	events := make(chan amqp.Delivery)
	close(events)
	if !relay.work(context.Background(), events) {
		t.Error("closed delivery channel must request a restart")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if relay.work(ctx, make(chan amqp.Delivery)) {
		t.Error("cancelled context must stop the relay")
	}
}
