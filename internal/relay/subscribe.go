package relay

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/1ureka/tangysync/internal/signaling"
	"github.com/1ureka/tangysync/internal/util"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// handleSubscribe upgrades to a WebSocket and streams every message addressed
// to the caller. Messages queued before the subscription are flushed first.
func (s *Server) handleSubscribe(c *gin.Context) {
	handle := c.GetString(handleKey)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := s.subscribe(handle)
	defer s.unsubscribe(handle, ch)
	util.LogDebug("relay: %s subscribed", handle)

	// Reader: only needed to notice the peer closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case msg := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (s *Server) subscribe(handle string) chan signaling.Message {
	ch := make(chan signaling.Message, subscriberSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs[handle] == nil {
		s.subs[handle] = make(map[chan signaling.Message]struct{})
	}
	s.subs[handle][ch] = struct{}{}

	pending := s.inboxes[handle]
	delete(s.inboxes, handle)
	for i, msg := range pending {
		select {
		case ch <- msg:
		default:
			// Put back what did not fit.
			s.inboxes[handle] = pending[i:]
			return ch
		}
	}
	return ch
}

func (s *Server) unsubscribe(handle string, ch chan signaling.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[handle], ch)
	if len(s.subs[handle]) == 0 {
		delete(s.subs, handle)
	}
}
