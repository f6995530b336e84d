package core

// OrderParams are the CLI-tunable settings of the order service.
type OrderParams struct {
	Port int
}

const (
	// WaitTime bounds request handling and graceful shutdown, seconds.
	WaitTime = 10

	// SubscriberBuffer is the per-subscriber feed channel capacity. A
	// subscriber that falls this far behind is disconnected and must
	// re-fetch full state on reconnect.
	SubscriberBuffer = 32
)
