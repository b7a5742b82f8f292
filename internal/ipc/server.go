// Package ipc relays extension lifecycle events to the player UI and
// accepts extension commands from it. The UI connects to a local websocket
// endpoint; every event published on the broker is delivered as one named
// JSON message. Command failures come back to the UI as extension_error
// events rather than RPC-style replies.
package ipc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mezzo-player/webext/internal/events"
)

// DefaultListenAddr is the loopback address the UI connects to.
const DefaultListenAddr = "127.0.0.1:48227"

const (
	writeTimeout = 10 * time.Second

	// subscriberBuffer is the per-connection event buffer; the broker
	// drops events for a UI that falls further behind than this.
	subscriberBuffer = 256
)

// CommandHandler processes commands arriving from the UI. Implemented by
// the extension manager.
type CommandHandler interface {
	Install(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	NotifyPopupShown(id string)
}

// Server is the IPC endpoint for the player UI.
type Server struct {
	addr     string
	broker   *events.Broker
	commands CommandHandler
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// New creates a Server. addr falls back to DefaultListenAddr when empty.
func New(addr string, broker *events.Broker, commands CommandHandler, log zerolog.Logger) *Server {
	if addr == "" {
		addr = DefaultListenAddr
	}
	return &Server{
		addr:     addr,
		broker:   broker,
		commands: commands,
		log:      log,
		upgrader: websocket.Upgrader{
			// Local IPC endpoint; the UI does not send an Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run serves the IPC endpoint until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ipc", func(w http.ResponseWriter, r *http.Request) {
		s.handleConn(ctx, w, r)
	})

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("IPC endpoint listening")

	srv := &http.Server{Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleConn upgrades one UI connection and pumps events out and commands in.
func (s *Server) handleConn(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.broker.Subscribe(subscriberBuffer)
	defer s.broker.Unsubscribe(sub)

	// ReadJSON only returns once the connection closes, so close it on
	// shutdown or the read loop outlives Run.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	// Writer: broker events out to the UI.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					s.log.Debug().Err(err).Msg("UI connection write failed")
					return
				}
			}
		}
	}()

	// Reader: commands in from the UI.
	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("UI connection closed")
			}
			break
		}
		s.dispatch(ctx, cmd)
	}

	<-done
}

// dispatch runs one UI command. Failures are already logged and forwarded
// as extension_error events by the manager, so they are dropped here.
func (s *Server) dispatch(ctx context.Context, cmd Command) {
	s.log.Debug().Str("op", cmd.Op).Str("id", cmd.ExtensionID).Msg("UI command")
	switch cmd.Op {
	case OpInstall:
		// Installs download from the CDN; run them off the read loop so
		// the connection stays responsive.
		go func() { _ = s.commands.Install(ctx, cmd.ExtensionID) }()
	case OpRemove:
		_ = s.commands.Remove(ctx, cmd.ExtensionID)
	case OpEnable:
		_ = s.commands.SetEnabled(ctx, cmd.ExtensionID, true)
	case OpDisable:
		_ = s.commands.SetEnabled(ctx, cmd.ExtensionID, false)
	case OpPopupShown:
		s.commands.NotifyPopupShown(cmd.ExtensionID)
	default:
		s.log.Warn().Str("op", cmd.Op).Msg("unknown UI command")
	}
}
