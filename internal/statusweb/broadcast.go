package statusweb

const broadcastChannelSize = 64

// broadcastEvent queues an event for every connected client. Non-blocking:
// drops the event (logging a warning) if the channel is saturated, since a
// read-only dashboard would rather miss a progress tick than stall the
// reconciliation it's watching.
func (s *Server) broadcastEvent(event Event) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn("broadcast channel full, dropping event", "type", event.Type)
	}
}
