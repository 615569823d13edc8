package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect opens a NATS connection that keeps retrying in the background.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}
