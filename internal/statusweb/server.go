// Package statusweb serves a read-only dashboard over a single
// reconciliation run: an embedded HTML page streams progress and the
// resulting change list over a WebSocket. It never accepts input back
// from the browser — the interactive yes/no confirmation stays a
// local-terminal-only collaborator (spec.md §1).
package statusweb

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ervinoro/dintact/internal/index"
	"github.com/ervinoro/dintact/internal/reconcile"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
)

// upgrader allows all origins: the dashboard is meant to be reached on
// localhost or a trusted LAN, the same trust boundary spec.md assumes
// for the interactive terminal prompts.
var upgrader = websocket.Upgrader{
	CheckOrigin:       func(*http.Request) bool { return true },
	EnableCompression: true,
}

// Server runs one reconciliation between hotRoot and coldRoot and
// streams its progress and resulting change list to any connected
// dashboard clients.
type Server struct {
	addr     string
	hotRoot  string
	coldRoot string
	logger   *slog.Logger

	httpServer *http.Server
	listenerMu sync.Mutex
	listener   net.Listener

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex

	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Server ready to be started with Start.
func New(addr, hotRoot, coldRoot string, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:     addr,
		hotRoot:  hotRoot,
		coldRoot: coldRoot,
		logger:   logger,
		clients:  make(map[*websocket.Conn]*sync.Mutex),
		events:   make(chan Event, broadcastChannelSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start serves the dashboard and runs one reconciliation in the
// background, blocking until the server exits or encounters a fatal
// error. Once Start returns (or once Addr can be called, after the
// listener is bound), the actual bound address is available via Addr.
func (s *Server) Start() error {
	webFS, err := webFS()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(webFS)))
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	s.wg.Add(2)
	go s.handleBroadcast()
	go s.runReconciliation()

	s.logger.Info("dintact status dashboard starting", "addr", "http://"+listener.Addr().String())
	err = s.httpServer.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Addr returns the bound listener address. Valid only after Start has
// been called (from another goroutine, since Start blocks).
func (s *Server) Addr() string {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the HTTP server and waits for background
// goroutines to exit.
func (s *Server) Shutdown() {
	if s.httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("dashboard shutdown error", "err", err)
		}
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Server) runReconciliation() {
	defer s.wg.Done()

	idx, err := index.Load(s.coldRoot)
	if err != nil {
		s.broadcastEvent(Event{Type: "error", Error: err.Error()})
		return
	}

	bar := newWSBar(s)
	s.broadcastEvent(Event{Type: "message", Message: "comparing hot and cold trees"})

	changes, err := reconcile.Run(s.ctx, s.hotRoot, s.coldRoot, idx, bar, s.logger)
	if err != nil {
		s.broadcastEvent(Event{Type: "error", Error: err.Error()})
		return
	}

	s.broadcastEvent(Event{Type: "changes", Changes: changeViews(changes)})
}

func (s *Server) handleBroadcast() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case event := <-s.events:
			s.sendToAllClients(event)
		}
	}
}

func (s *Server) sendToAllClients(event Event) {
	s.clientsMu.RLock()
	snapshot := make(map[*websocket.Conn]*sync.Mutex, len(s.clients))
	for conn, mu := range s.clients {
		snapshot[conn] = mu
	}
	s.clientsMu.RUnlock()

	var failed []*websocket.Conn
	for conn, mu := range snapshot {
		mu.Lock()
		err1 := conn.SetWriteDeadline(time.Now().Add(writeWait))
		var err2 error
		if err1 == nil {
			err2 = conn.WriteJSON(event)
		}
		mu.Unlock()
		if err1 != nil || err2 != nil {
			failed = append(failed, conn)
		}
	}

	if len(failed) > 0 {
		s.clientsMu.Lock()
		for _, conn := range failed {
			delete(s.clients, conn)
			_ = conn.Close()
		}
		s.clientsMu.Unlock()
	}
}
