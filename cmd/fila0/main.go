package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/FedePlevak/Fila0/internal/expirer"
	"github.com/FedePlevak/Fila0/internal/notsub"
	"github.com/FedePlevak/Fila0/internal/order"
	xerrors "github.com/FedePlevak/Fila0/internal/xpkg/errors"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

func main() {
	mylogger, err := logger.New("DEBUG")
	if err != nil {
		log.Fatalf("log error: %v", err)
	}

	fs := flag.NewFlagSet("main", flag.ExitOnError)
	mode := fs.String("mode", "", "service to run: order-service | notification-subscriber | expiry-scheduler")

	modeArgs, remainingArgs := splitModeArgs(os.Args[1:])
	if err := fs.Parse(modeArgs); err != nil {
		mylogger.Action("startup_failed").Error("Failed to parse flags", err)
		help(fs)
		return
	}

	if *mode == "" {
		mylogger.Action("startup_failed").Error("Failed to start", xerrors.ErrModeFlag)
		help(fs)
		return
	}

	ctx := context.Background()
	switch *mode {
	case "order-service", "os":
		l := mylogger.With("service", "order-service")
		l.Action("order_service_started").Info("Successfully started")
		if err := order.Execute(ctx, l, remainingArgs); err != nil {
			l.Action("order_service_failed").Error("Error in order-service", err)
			if !errors.Is(err, xerrors.ErrHelp) {
				log.Fatalf("failed to execute order-service: %s", err)
			}
		}
		l.Action("order_service_completed").Info("Successfully completed")

	case "notification-subscriber", "ns":
		l := mylogger.With("service", "notification-subscriber")
		l.Action("notification_subscriber_started").Info("Successfully started")
		if err := notsub.Execute(ctx, l, remainingArgs); err != nil {
			l.Action("notification_subscriber_failed").Error("Error in notification-subscriber", err)
			if !errors.Is(err, xerrors.ErrHelp) {
				log.Fatalf("failed to execute notification-subscriber: %s", err)
			}
		}
		l.Action("notification_subscriber_completed").Info("Successfully completed")

	case "expiry-scheduler", "es":
		l := mylogger.With("service", "expiry-scheduler")
		l.Action("expiry_scheduler_started").Info("Successfully started")
		if err := expirer.Execute(ctx, l, remainingArgs); err != nil {
			l.Action("expiry_scheduler_failed").Error("Error in expiry-scheduler", err)
			if !errors.Is(err, xerrors.ErrHelp) {
				log.Fatalf("failed to execute expiry-scheduler: %s", err)
			}
		}
		l.Action("expiry_scheduler_completed").Info("Successfully completed")

	default:
		mylogger.Action("startup_failed").Error("Failed to start", xerrors.ErrUnknownService)
		help(fs)
	}
}

// splitModeArgs cuts the argument list after the mode flag and its
// value; everything following goes to the selected service. Both
// `--mode=x` and `--mode x` are accepted.
func splitModeArgs(args []string) (modeArgs, rest []string) {
	for i, arg := range args {
		if !strings.HasPrefix(arg, "--mode") && !strings.HasPrefix(arg, "-mode") {
			continue
		}
		end := i + 1
		if (arg == "--mode" || arg == "-mode") && end < len(args) {
			end++
		}
		return args[:end], args[end:]
	}
	return nil, args
}

func help(fs *flag.FlagSet) {
	fmt.Println("\nUsage:")
	fs.PrintDefaults()
	fmt.Println("\nExample:")
	fmt.Println("  ./fila0 --mode=order-service --port=3000")
}
