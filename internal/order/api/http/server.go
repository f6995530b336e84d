package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	brokermessage "github.com/FedePlevak/Fila0/internal/order/adapter/broker_message"
	database "github.com/FedePlevak/Fila0/internal/order/adapter/db"
	"github.com/FedePlevak/Fila0/internal/order/adapter/feed"
	"github.com/FedePlevak/Fila0/internal/order/api/http/handle"
	"github.com/FedePlevak/Fila0/internal/order/app/core"
	"github.com/FedePlevak/Fila0/internal/order/app/services"
	"github.com/FedePlevak/Fila0/internal/xpkg/config"
	"github.com/FedePlevak/Fila0/internal/xpkg/db"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

var ErrServerClosed = errors.New("server closed")

type Server struct {
	mux         *http.ServeMux
	cfg         *config.Config
	srv         *http.Server
	orderParams *core.OrderParams
	mylog       logger.Logger
	db          core.IDB
	mb          core.IBroker
	rmq         *brokermessage.RabbitMQ
	relay       *brokermessage.FeedRelay
	hub         *feed.Hub
	ctx         context.Context
	appCtx      context.Context
	mu          sync.Mutex
}

func NewServer(ctx, appCtx context.Context, cfg *config.Config, orderParams *core.OrderParams, mylog logger.Logger) *Server {
	return &Server{
		ctx:         ctx,
		appCtx:      appCtx,
		cfg:         cfg,
		orderParams: orderParams,
		mylog:       mylog,
		mux:         http.NewServeMux(),
	}
}

// Run initializes connections and routes and starts listening. It
// returns when the server stops.
func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	if err := s.initializeDatabase(); err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return err
	}
	mylog.Action("db_connected").Info("Successful database connection")

	if err := s.initializeRabbitMQ(); err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}
	mylog.Action("mb_connected").Info("Successful message broker connection")

	s.Configure()

	go s.relay.Run(s.ctx)

	s.mu.Lock()
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.orderParams.Port),
		Handler: s.mux,
	}
	s.mu.Unlock()

	mylog.Info("server is running", "port", s.orderParams.Port)
	return s.startHTTPServer()
}

// Stop provides a programmatic shutdown. Accepts a context for timeout control.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Action("graceful_shutdown_started").Info("Shutting down HTTP server...")

	if s.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, core.WaitTime*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.mylog.Action("graceful_shutdown_failed").Error("Failed to shut down HTTP server gracefully", err)
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.mylog.Action("db_close_failed").Error("Failed to close database", err)
			return fmt.Errorf("db close: %w", err)
		}
		s.mylog.Action("db_closed").Info("Database closed")
	}

	if s.mb != nil {
		if err := s.mb.Close(); err != nil {
			s.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
			return fmt.Errorf("mb close: %w", err)
		}
		s.mylog.Action("mb_closed").Info("Message broker closed")
	}

	s.mylog.Action("graceful_shutdown_completed").Info("HTTP server shut down gracefully")
	return nil
}

func (s *Server) startHTTPServer() error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-s.ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) initializeDatabase() error {
	conn, err := db.Start(s.appCtx, s.cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = conn
	return nil
}

func (s *Server) initializeRabbitMQ() error {
	mb, err := brokermessage.New(s.appCtx, *s.cfg.RMQ, s.mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	s.rmq = mb
	s.mb = mb
	return nil
}

// Configure wires repositories, services and routes.
func (s *Server) Configure() {
	s.hub = feed.NewHub(s.mylog)

	orderRepo := database.NewOrderRepo(s.db, s.mylog)
	orderService := services.NewOrderService(orderRepo, s.mb, s.hub, s.cfg.Policies, s.mylog)
	orderHandler := handle.NewOrderHandler(orderService, s.hub, s.mylog)

	// Mutations committed by other processes (the expiry scheduler) only
	// reach this hub through the orders exchange.
	s.relay = brokermessage.NewFeedRelay(s.rmq, orderRepo, s.hub, s.mylog)

	s.mux.Handle("POST /orders", orderHandler.Create())
	s.mux.Handle("GET /orders/{order_id}", orderHandler.Get())
	s.mux.Handle("GET /orders/{order_id}/history", orderHandler.History())
	s.mux.Handle("POST /orders/{order_id}/transition", orderHandler.Transition())
	s.mux.Handle("GET /vendors/{vendor_relation_id}/queues", orderHandler.Queues())
	s.mux.Handle("GET /ws/orders", orderHandler.SubscribeVendor())
	s.mux.Handle("GET /ws/orders/{order_id}", orderHandler.SubscribeOrder())
	s.mux.Handle("POST /payments/events", orderHandler.PaymentEvent())
}
