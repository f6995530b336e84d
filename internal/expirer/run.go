package expirer

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	brokermessage "github.com/FedePlevak/Fila0/internal/order/adapter/broker_message"
	database "github.com/FedePlevak/Fila0/internal/order/adapter/db"
	"github.com/FedePlevak/Fila0/internal/order/app/services"
	"github.com/FedePlevak/Fila0/internal/xpkg/config"
	"github.com/FedePlevak/Fila0/internal/xpkg/db"
	xerrors "github.com/FedePlevak/Fila0/internal/xpkg/errors"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

// Execute starts the expiry scheduler.
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, close := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer close()

	fs := flag.NewFlagSet("expiry-scheduler", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")

	if err := fs.Parse(args); err != nil {
		return xerrors.ErrParseCmd
	}
	if *showHelp {
		fs.Usage()
		return xerrors.ErrHelp
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		mylog.Action("config_load_failed").Error("Failed to load config", err)
		return err
	}

	conn, err := db.Start(newCtx, cfg.DB)
	if err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return err
	}
	defer conn.Close()
	mylog.Action("db_connected").Info("Successful database connection")

	mb, err := brokermessage.New(newCtx, *cfg.RMQ, mylog)
	if err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}
	defer mb.Close()
	mylog.Action("mb_connected").Info("Successful message broker connection")

	orderRepo := database.NewOrderRepo(conn, mylog)
	// The scheduler has no in-process subscribers; its commits reach
	// boards and tracking views through the orders exchange, which the
	// order service relays into its hub.
	orderService := services.NewOrderService(orderRepo, mb, nil, cfg.Policies, mylog)
	sweeper := NewSweeper(orderRepo, orderService, cfg.Policies, mylog)

	mylog.Action("scheduler_started").Info("Expiry scheduler running",
		"sweep_interval", cfg.Policies.SweepInterval.String(),
		"ready_expiry", cfg.Policies.ReadyExpiry.String(),
	)

	g, gctx := errgroup.WithContext(newCtx)
	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		mylog.Action("scheduler_failed").Error("Expiry scheduler failed", err)
		return err
	}

	mylog.Action("graceful_shutdown_completed").Info("Expiry scheduler stopped")
	return nil
}
