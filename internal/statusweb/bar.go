package statusweb

import "sync/atomic"

// wsBar is a progress.Bar that broadcasts byte-count updates as Events
// instead of drawing to a terminal.
type wsBar struct {
	server  *Server
	current int64
	total   int64
}

func newWSBar(s *Server) *wsBar {
	return &wsBar{server: s}
}

func (b *wsBar) Add(n int64) {
	current := atomic.AddInt64(&b.current, n)
	b.server.broadcastEvent(Event{Type: "progress", Current: current, Total: atomic.LoadInt64(&b.total)})
}

func (b *wsBar) SetTotal(total int64) {
	atomic.StoreInt64(&b.total, total)
}

func (b *wsBar) Message(msg string) {
	b.server.broadcastEvent(Event{Type: "message", Message: msg})
}

func (b *wsBar) Stop() {}
