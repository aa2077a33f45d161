package statusweb

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// handleWebSocket upgrades the connection and registers it for the
// event broadcast. The dashboard never sends anything meaningful back;
// reads only exist to detect disconnects and answer pings.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error("failed to set read deadline", "addr", conn.RemoteAddr(), "err", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s.logger.Info("dashboard client connected", "addr", conn.RemoteAddr())

	writeMu := &sync.Mutex{}
	s.clientsMu.Lock()
	s.clients[conn] = writeMu
	s.clientsMu.Unlock()

	done := make(chan struct{})
	go s.clientReadPump(conn, done)
	go s.clientWritePump(conn, done, writeMu)
}

func (s *Server) clientReadPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) clientWritePump(conn *websocket.Conn, done chan struct{}, writeMu *sync.Mutex) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.removeClient(conn)

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			writeMu.Lock()
			err1 := conn.SetWriteDeadline(time.Now().Add(writeWait))
			var err2 error
			if err1 == nil {
				err2 = conn.WriteMessage(websocket.PingMessage, nil)
			}
			writeMu.Unlock()
			if err1 != nil || err2 != nil {
				return
			}
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if _, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		_ = conn.Close()
		s.logger.Info("dashboard client disconnected", "addr", conn.RemoteAddr())
	}
}
