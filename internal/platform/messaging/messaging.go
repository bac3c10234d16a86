// Package messaging provides a NATS connection wrapper.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Bus wraps a NATS connection.
type Bus struct {
	Conn *nats.Conn
}

// ValidateURL checks that url is a usable NATS server list.
func ValidateURL(url string) error {
	if url == "" {
		return fmt.Errorf("NATS URL is empty")
	}
	for _, u := range strings.Split(url, ",") {
		u = strings.TrimSpace(u)
		if !strings.HasPrefix(u, "nats://") && !strings.HasPrefix(u, "tls://") {
			return fmt.Errorf("invalid NATS URL %q: scheme must be nats:// or tls://", u)
		}
	}
	return nil
}

// New connects to NATS. The context bounds the initial connection attempt.
func New(ctx context.Context, url, name string) (*Bus, error) {
	if err := ValidateURL(url); err != nil {
		return nil, err
	}

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(timeout),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Bus{Conn: conn}, nil
}

// Publish sends data on subject.
func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	if err := b.Conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (b *Bus) Close() error {
	if err := b.Conn.Drain(); err != nil {
		b.Conn.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

// HealthCheck reports whether the connection is up.
func (b *Bus) HealthCheck(context.Context) error {
	if !b.Conn.IsConnected() {
		return fmt.Errorf("NATS connection status %s", b.Conn.Status())
	}
	return nil
}
