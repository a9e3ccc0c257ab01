package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNotConnected is returned when the client has no NATS connection.
var ErrNotConnected = errors.New("peer: not connected")

// Client is the TV application side of peer coordination.
type Client struct {
	url    string
	name   string
	conn   *nats.Conn
	logger *slog.Logger
}

// NewClient creates a client announcing itself as name.
func NewClient(url, name string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:    url,
		name:   name,
		logger: logger.With("component", "peer-client", "peer", name),
	}
}

// Connect establishes a connection to the NATS server.
func (c *Client) Connect() error {
	conn, err := nats.Connect(c.url,
		nats.Name(c.name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", c.url, err)
	}
	c.conn = conn
	c.logger.Debug("Connected to NATS", "url", c.url)
	return nil
}

// Attach announces that this peer takes the hardware and waits until the
// node reports slave mode.
func (c *Client) Attach(ctx context.Context, reason string) (StatusMessage, error) {
	return c.announce(ctx, SubjectPeerAttach, reason, true)
}

// Detach announces that this peer released the hardware and waits until the
// node leaves slave mode.
func (c *Client) Detach(ctx context.Context, reason string) (StatusMessage, error) {
	return c.announce(ctx, SubjectPeerDetach, reason, false)
}

func (c *Client) announce(ctx context.Context, subject, reason string, slave bool) (StatusMessage, error) {
	if c.conn == nil {
		return StatusMessage{}, ErrNotConnected
	}

	// Subscribe first so the reply to our own announcement is not missed.
	sub, err := c.conn.SubscribeSync(SubjectAcqStatus)
	if err != nil {
		return StatusMessage{}, fmt.Errorf("failed to subscribe to status: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	data, err := PeerMessage{
		Peer:      c.name,
		Timestamp: time.Now().Format(time.RFC3339),
		Reason:    reason,
	}.Marshal()
	if err != nil {
		return StatusMessage{}, err
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return StatusMessage{}, fmt.Errorf("failed to publish %s: %w", subject, err)
	}

	for {
		msg, err := sub.NextMsgWithContext(ctx)
		if err != nil {
			return StatusMessage{}, fmt.Errorf("waiting for node status: %w", err)
		}
		status, err := UnmarshalStatus(msg.Data)
		if err != nil {
			c.logger.Warn("Failed to unmarshal status", "error", err)
			continue
		}
		if status.Slave == slave {
			return status, nil
		}
	}
}

// Close closes the NATS connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
