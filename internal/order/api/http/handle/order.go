package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/FedePlevak/Fila0/internal/order/adapter/feed"
	"github.com/FedePlevak/Fila0/internal/order/app/core"
	"github.com/FedePlevak/Fila0/internal/order/app/services"
	"github.com/FedePlevak/Fila0/internal/order/domain/dto"
	"github.com/FedePlevak/Fila0/internal/order/domain/models"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

type OrderHandler struct {
	orderService *services.OrderService
	hub          *feed.Hub
	mylog        logger.Logger
}

func NewOrderHandler(orderService *services.OrderService, hub *feed.Hub, mylog logger.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		hub:          hub,
		mylog:        mylog,
	}
}

// Create handles POST /orders: commit a cart as an immutable order.
func (oh *OrderHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}

		ctx, cancel := requestCtx(r)
		defer cancel()

		order, err := oh.orderService.Create(ctx, req)
		if err != nil {
			jsonError(w, statusFor(err), err)
			return
		}

		jsonResponse(w, http.StatusCreated, order)
	}
}

// Transition handles POST /orders/{order_id}/transition. The acting
// role comes from the identity provider in front of this service via
// the X-Actor-Role header.
func (oh *OrderHandler) Transition() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := r.PathValue("order_id")

		var req dto.TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}

		actor := models.Role(r.Header.Get("X-Actor-Role"))
		changedBy := r.Header.Get("X-Actor")
		if changedBy == "" {
			changedBy = string(actor)
		}

		ctx, cancel := requestCtx(r)
		defer cancel()

		order, err := oh.orderService.Transition(
			ctx,
			orderID,
			models.Status(req.TargetStatus),
			models.Status(req.ExpectedStatus),
			actor,
			changedBy,
		)
		if err != nil {
			jsonError(w, statusFor(err), err)
			return
		}

		jsonResponse(w, http.StatusOK, order)
	}
}

// Get handles GET /orders/{order_id}: the tracking view's initial fetch.
func (oh *OrderHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := requestCtx(r)
		defer cancel()

		order, err := oh.orderService.Get(ctx, r.PathValue("order_id"))
		if err != nil {
			jsonError(w, statusFor(err), err)
			return
		}

		jsonResponse(w, http.StatusOK, order)
	}
}

// History handles GET /orders/{order_id}/history: the audit trail.
func (oh *OrderHandler) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := requestCtx(r)
		defer cancel()

		history, err := oh.orderService.History(ctx, r.PathValue("order_id"))
		if err != nil {
			jsonError(w, statusFor(err), err)
			return
		}

		jsonResponse(w, http.StatusOK, history)
	}
}

// Queues handles GET /vendors/{vendor_relation_id}/queues: the staff
// board projection.
func (oh *OrderHandler) Queues() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := requestCtx(r)
		defer cancel()

		queues, err := oh.orderService.ListActiveQueues(ctx, r.PathValue("vendor_relation_id"))
		if err != nil {
			jsonError(w, statusFor(err), err)
			return
		}

		jsonResponse(w, http.StatusOK, queues)
	}
}

// PaymentEvent handles POST /payments/events, the gateway webhook.
func (oh *OrderHandler) PaymentEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev dto.PaymentEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			jsonError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}

		ctx, cancel := requestCtx(r)
		defer cancel()

		order, err := oh.orderService.HandlePaymentEvent(ctx, ev)
		if err != nil {
			jsonError(w, statusFor(err), err)
			return
		}

		jsonResponse(w, http.StatusOK, order)
	}
}

func requestCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), core.WaitTime*time.Second)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrEmptyCart), errors.Is(err, core.ErrInvalidLineItem):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrPickupCodeExhausted):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
