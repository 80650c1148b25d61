package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("focusflow"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes events as JSON to
// <prefix>.sessions.<sessionId>.<type> or <prefix>.users.<userId>.<type>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

func (p *NATSPublisher) Publish(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := Subject(p.prefix, e)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func Subject(prefix string, e Event) string {
	suffix := "points"
	if e.Type == TypeSessionEnded {
		suffix = "ended"
	}
	if e.SessionID != "" {
		return fmt.Sprintf("%s.sessions.%s.%s", prefix, e.SessionID, suffix)
	}
	return fmt.Sprintf("%s.users.%s.%s", prefix, e.UserID, suffix)
}
