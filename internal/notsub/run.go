package notsub

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/FedePlevak/Fila0/internal/notsub/subscriber"
	"github.com/FedePlevak/Fila0/internal/xpkg/config"
	xerrors "github.com/FedePlevak/Fila0/internal/xpkg/errors"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

// Execute starts the notification subscriber.
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, close := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer close()

	fs := flag.NewFlagSet("notification-subscriber", flag.ContinueOnError)
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

	notification := subscriber.NewNotification(newCtx, context.Background(), cfg, mylog)

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- notification.Run()
	}()

	select {
	case <-newCtx.Done():
		mylog.Action("shutdown_signal_received").Info("Shutdown signal received")
		return notification.Stop(context.Background())
	case err := <-runErrCh:
		if err != nil {
			mylog.Action("notification_subscriber_failed").Error("Subscriber failed unexpectedly", err)
		}
		// Run can also return on its own (delivery channel closed);
		// release the broker connection either way.
		if stopErr := notification.Stop(context.Background()); stopErr != nil && err == nil {
			err = stopErr
		}
		return err
	}
}
