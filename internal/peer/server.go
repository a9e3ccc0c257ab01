package peer

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// Defaults for the embedded server. Peer messages are small JSON documents.
const (
	DefaultServerPort  = 4222
	defaultReadyWait   = 5 * time.Second
	maxPeerMessageSize = 16 * 1024
)

// ErrServerNotReady is returned when the embedded server does not accept
// connections within the ready timeout.
var ErrServerNotReady = errors.New("peer: NATS server not ready")

// ServerOptions configures the embedded NATS server. A Port of -1 picks a
// free port.
type ServerOptions struct {
	Host         string
	Port         int
	Name         string
	ReadyTimeout time.Duration
	Logger       *slog.Logger
}

// Server is a NATS server embedded in the node for peers on the same host
// that have no broker of their own.
type Server struct {
	opts   ServerOptions
	ns     *server.Server
	logger *slog.Logger
}

// NewServer creates an embedded server; nothing listens until Start.
func NewServer(opts ServerOptions) *Server {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Port == 0 {
		opts.Port = DefaultServerPort
	}
	if opts.Name == "" {
		opts.Name = "vbinode"
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaultReadyWait
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{opts: opts, logger: opts.Logger.With("component", "nats-server")}
}

// Start launches the server and blocks until it accepts connections.
func (s *Server) Start() error {
	ns, err := server.NewServer(&server.Options{
		ServerName: s.opts.Name,
		Host:       s.opts.Host,
		Port:       s.opts.Port,
		NoSigs:     true,
		MaxPayload: maxPeerMessageSize,
	})
	if err != nil {
		return fmt.Errorf("peer: create NATS server: %w", err)
	}
	ns.SetLoggerV2(natsLogger{s.logger}, false, false, false)

	go ns.Start()
	if !ns.ReadyForConnections(s.opts.ReadyTimeout) {
		ns.Shutdown()
		return fmt.Errorf("%w after %s", ErrServerNotReady, s.opts.ReadyTimeout)
	}

	s.ns = ns
	s.logger.Info("Embedded NATS server listening", "url", s.ClientURL())
	return nil
}

// Stop shuts the server down and waits for it to exit.
func (s *Server) Stop() {
	if s.ns == nil {
		return
	}
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	s.ns = nil
	s.logger.Info("Embedded NATS server stopped")
}

// ClientURL is the URL peers connect to. Before Start it is derived from
// the options.
func (s *Server) ClientURL() string {
	if s.ns != nil {
		return s.ns.ClientURL()
	}
	return "nats://" + net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (s *Server) IsRunning() bool {
	return s.ns != nil && s.ns.Running()
}

// NumClients returns the number of connected peers, bridge included.
func (s *Server) NumClients() int {
	if s.ns == nil {
		return 0
	}
	return s.ns.NumClients()
}

// natsLogger routes the server's own log lines into slog.
type natsLogger struct{ logger *slog.Logger }

func (l natsLogger) Noticef(format string, v ...any) { l.logger.Debug(fmt.Sprintf(format, v...)) }
func (l natsLogger) Warnf(format string, v ...any)   { l.logger.Warn(fmt.Sprintf(format, v...)) }
func (l natsLogger) Fatalf(format string, v ...any)  { l.logger.Error(fmt.Sprintf(format, v...)) }
func (l natsLogger) Errorf(format string, v ...any)  { l.logger.Error(fmt.Sprintf(format, v...)) }
func (l natsLogger) Debugf(format string, v ...any)  { l.logger.Debug(fmt.Sprintf(format, v...)) }
func (l natsLogger) Tracef(format string, v ...any)  { l.logger.Debug(fmt.Sprintf(format, v...)) }
