// Package monitor serves the live scan cursor over a local websocket so a
// renderer or debugging UI can display the highlight without touching the
// engine.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jblick1327/switch-interface/internal/scan"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	// clientBuffer frames are queued per client; a client that falls behind
	// misses intermediate frames rather than stalling the engine.
	clientBuffer = 32
)

// Source exposes the cursor views the monitor publishes.
type Source interface {
	Snapshot() scan.Snapshot
	Subscribe(buffer int) (<-chan scan.Snapshot, func())
}

// Server streams snapshots to websocket clients and answers one-shot
// snapshot requests over plain HTTP.
type Server struct {
	source   Source
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer wires a monitor server to its snapshot source.
func NewServer(source Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		source: source,
		logger: logger,
		upgrader: websocket.Upgrader{
			// The listener is loopback-only; cross-origin pages may still
			// open local websockets, so accept any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the monitor's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Serve runs the monitor on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	err := srv.Serve(ln)
	<-done
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.source.Snapshot())
}

// handleWS upgrades the connection, sends the current snapshot immediately,
// then streams updates. The pumps deliberately outlive the request context;
// net/http cancels it as soon as the handler returns.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("monitor upgrade failed", "remote_addr", r.RemoteAddr, "error", err.Error())
		return
	}

	frames, unsubscribe := s.source.Subscribe(clientBuffer)
	s.logger.Info("monitor client connected", "remote_addr", r.RemoteAddr)

	go s.writePump(conn, frames, unsubscribe, r.RemoteAddr)
	go s.readPump(conn, r.RemoteAddr)
}

func (s *Server) writePump(conn *websocket.Conn, frames <-chan scan.Snapshot, unsubscribe func(), remote string) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer unsubscribe()
	defer conn.Close()

	if err := s.writeSnapshot(conn, s.source.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case snap, ok := <-frames:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.writeSnapshot(conn, snap); err != nil {
				s.logger.Debug("monitor client write failed", "remote_addr", remote, "error", err.Error())
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn, snap scan.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// readPump discards client messages; it exists to surface disconnects and
// keep pong handling alive.
func (s *Server) readPump(conn *websocket.Conn, remote string) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.logger.Info("monitor client disconnected", "remote_addr", remote)
			return
		}
	}
}
