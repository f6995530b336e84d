package subscriber

import (
	"context"
	"testing"

	"github.com/FedePlevak/Fila0/internal/xpkg/config"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

func TestStopBeforeBrokerConnect(t *testing.T) {
	mylog, err := logger.New("disabled")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	// Run can fail before the broker connection is established; the
	// shutdown path still runs Stop and must handle the missing
	// connection.
	n := NewNotification(context.Background(), context.Background(), &config.Config{}, mylog)
	if err := n.Stop(context.Background()); err != nil {
		t.Fatalf("Stop without a broker connection: %v", err)
	}

	// Stop is safe to call again after the first shutdown.
	if err := n.Stop(context.Background()); err != nil {
		t.Fatalf("repeated Stop: %v", err)
	}
}
