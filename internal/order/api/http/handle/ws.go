package handle

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/FedePlevak/Fila0/internal/order/adapter/feed"
	"github.com/FedePlevak/Fila0/internal/order/domain/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SubscribeVendor handles GET /ws/orders?vendor_relation_id=...: the
// staff board feed. The full active set is sent first, then updates.
func (oh *OrderHandler) SubscribeVendor() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID := r.URL.Query().Get("vendor_relation_id")
		if vendorID == "" {
			jsonError(w, http.StatusBadRequest, errors.New("vendor_relation_id is required"))
			return
		}

		oh.serveFeed(w, r, feed.Scope{VendorRelationID: vendorID}, func(ctx context.Context) ([]models.Order, error) {
			return oh.orderService.ListActive(ctx, vendorID)
		})
	}
}

// SubscribeOrder handles GET /ws/orders/{order_id}: one customer
// tracking one purchase.
func (oh *OrderHandler) SubscribeOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := r.PathValue("order_id")

		oh.serveFeed(w, r, feed.Scope{OrderID: orderID}, func(ctx context.Context) ([]models.Order, error) {
			order, err := oh.orderService.Get(ctx, orderID)
			if err != nil {
				return nil, err
			}
			return []models.Order{order}, nil
		})
	}
}

func (oh *OrderHandler) serveFeed(
	w http.ResponseWriter,
	r *http.Request,
	scope feed.Scope,
	initial func(ctx context.Context) ([]models.Order, error),
) {
	mylog := oh.mylog.Action("feed_subscriber")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		mylog.Error("Failed to upgrade connection", err)
		return
	}
	defer conn.Close()

	// Register before fetching the snapshot so mutations committed in
	// between are buffered, not lost.
	sub := oh.hub.Subscribe(scope)
	defer sub.Close()

	ctx, cancel := requestCtx(r)
	orders, err := initial(ctx)
	cancel()
	if err != nil {
		mylog.Error("Failed to fetch initial state", err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "initial state unavailable"))
		return
	}
	sub.Prime(orders)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case order, ok := <-sub.C():
			if !ok {
				// Dropped as a slow subscriber; the client reconnects
				// and re-fetches full state.
				return
			}
			if err := conn.WriteJSON(order); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
