package peer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/vbinode/internal/events"
)

// Coordinator applies peer attach and detach to the acquisition.
type Coordinator interface {
	SetPeer(peer string, attached bool) error
}

// Bridge is the node side of peer coordination. Attach and detach messages
// are handed to the coordinator; acquisition events from the bus are
// republished as status messages.
type Bridge struct {
	url      string
	node     string
	coord    Coordinator
	eventBus *events.Bus
	logger   *slog.Logger

	mu     sync.Mutex
	conn   *nats.Conn
	subs   []*nats.Subscription
	unsubs []func()
	last   StatusMessage
}

// NewBridge creates a bridge for the node named node.
func NewBridge(url, node string, coord Coordinator, eventBus *events.Bus, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		url:      url,
		node:     node,
		coord:    coord,
		eventBus: eventBus,
		logger:   logger.With("component", "peer-bridge"),
		last:     StatusMessage{Node: node, State: "disabled"},
	}
}

// Start connects to NATS and subscribes to peer subjects.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := nats.Connect(b.url,
		nats.Name(b.node+"-peer-bridge"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("NATS bridge disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("NATS bridge reconnected")
		}),
	)
	if err != nil {
		return err
	}
	b.conn = conn
	b.logger.Info("NATS bridge connected", "url", b.url)

	for subject, attached := range map[string]bool{SubjectPeerAttach: true, SubjectPeerDetach: false} {
		sub, err := conn.Subscribe(subject, b.peerHandler(attached))
		if err != nil {
			b.cleanup()
			return err
		}
		b.subs = append(b.subs, sub)
	}

	if err := conn.Flush(); err != nil {
		b.cleanup()
		return err
	}

	b.unsubs = append(b.unsubs,
		b.eventBus.Subscribe(b.handleState),
		b.eventBus.Subscribe(b.handlePeerMode),
	)
	return nil
}

func (b *Bridge) peerHandler(attached bool) nats.MsgHandler {
	return func(msg *nats.Msg) {
		m, err := UnmarshalPeer(msg.Data)
		if err != nil {
			b.logger.Warn("Failed to unmarshal peer message", "error", err, "subject", msg.Subject)
			return
		}
		b.logger.Info("Peer message received", "peer", m.Peer, "attached", attached, "reason", m.Reason)
		if err := b.coord.SetPeer(m.Peer, attached); err != nil {
			b.logger.Warn("Failed to apply peer change", "peer", m.Peer, "attached", attached, "error", err)
		}
	}
}

func (b *Bridge) handleState(e events.AcquisitionStateChangedEvent) {
	b.mu.Lock()
	b.last.State = e.State
	b.last.CardIndex = e.CardIndex
	b.last.SessionID = e.SessionID
	b.last.Reason = e.Reason
	msg := b.last
	b.mu.Unlock()
	b.publish(msg)
}

func (b *Bridge) handlePeerMode(e events.PeerModeChangedEvent) {
	b.mu.Lock()
	b.last.Slave = e.Slave
	if e.Slave {
		b.last.Reason = "peer_attach"
	} else {
		b.last.Reason = "peer_detach"
	}
	msg := b.last
	b.mu.Unlock()
	b.publish(msg)
}

func (b *Bridge) publish(msg StatusMessage) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return
	}

	msg.Timestamp = time.Now().Format(time.RFC3339)
	data, err := msg.Marshal()
	if err != nil {
		b.logger.Warn("Failed to marshal status", "error", err)
		return
	}
	if err := conn.Publish(SubjectAcqStatus, data); err != nil {
		b.logger.Warn("Failed to publish status", "error", err)
	}
}

// cleanup unsubscribes and closes the connection (must hold lock).
func (b *Bridge) cleanup() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// Stop closes the bridge connection.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanup()
	b.logger.Info("NATS bridge stopped")
}

// IsConnected returns true if the bridge is connected to NATS.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}
