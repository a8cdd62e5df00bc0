package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	defaultReconnectWait = 2 * time.Second
	defaultDrainTimeout  = 5 * time.Second
)

// Subscription is an active subscription.
type Subscription interface {
	Unsubscribe() error
}

// Conn is the subset of a NATS connection used by the Bridge.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler nats.MsgHandler) (Subscription, error)
	QueueSubscribe(subject, queue string, handler nats.MsgHandler) (Subscription, error)
}

// NATSConn adapts *nats.Conn to Conn.
type NATSConn struct {
	nc *nats.Conn
}

// Connect dials the NATS server at url. The connection reconnects forever
// and logs disconnects and reconnects.
func Connect(url, name string, logger *slog.Logger) (*NATSConn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(defaultReconnectWait),
		nats.DrainTimeout(defaultDrainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("reconnected to NATS", "url", c.ConnectedUrlRedacted())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	logger.Info("connected to NATS", "url", nc.ConnectedUrlRedacted(), "name", name)
	return &NATSConn{nc: nc}, nil
}

// Publish implements Conn.
func (c *NATSConn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

// Subscribe implements Conn.
func (c *NATSConn) Subscribe(subject string, handler nats.MsgHandler) (Subscription, error) {
	return c.nc.Subscribe(subject, handler)
}

// QueueSubscribe implements Conn.
func (c *NATSConn) QueueSubscribe(subject, queue string, handler nats.MsgHandler) (Subscription, error) {
	return c.nc.QueueSubscribe(subject, queue, handler)
}

// Close drains pending messages and closes the connection.
func (c *NATSConn) Close(ctx context.Context) error {
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	for c.nc.IsDraining() {
		select {
		case <-ctx.Done():
			c.nc.Close()
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return nil
}
