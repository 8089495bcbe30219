package relay

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/1ureka/tangysync/internal/signaling"
	"github.com/1ureka/tangysync/internal/util"
)

// authenticate takes the caller's handle from the bearer token.
func (s *Server) authenticate(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	c.Set(handleKey, token)
	c.Next()
}

func (s *Server) throttle(c *gin.Context) {
	if !s.limiter(c.GetString(handleKey)).Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}
	c.Next()
}

func (s *Server) limiter(handle string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[handle]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[handle] = l
	}
	return l
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.Lock()
	peers := len(s.presence)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "peers": peers})
}

func (s *Server) handlePost(typ signaling.MessageType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var env signaling.Envelope
		if err := c.ShouldBindJSON(&env); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if env.To == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing recipient"})
			return
		}

		msg := signaling.Message{Type: typ, From: c.GetString(handleKey), SDP: env.SDP}
		if !s.deliver(env.To, msg) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "inbox full"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"queued": true})
	}
}

func (s *Server) handleInbox(c *gin.Context) {
	handle := c.GetString(handleKey)

	s.mu.Lock()
	msgs := s.inboxes[handle]
	delete(s.inboxes, handle)
	s.mu.Unlock()

	if msgs == nil {
		msgs = []signaling.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) handleHeartbeat(c *gin.Context) {
	var p signaling.Presence
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	handle := c.GetString(handleKey)

	s.mu.Lock()
	s.presence[handle] = Peer{Handle: handle, Busy: p.Busy, LastSeen: time.Now()}
	s.mu.Unlock()

	c.Status(http.StatusNoContent)
}

func (s *Server) handlePresence(c *gin.Context) {
	s.mu.Lock()
	peers := make([]Peer, 0, len(s.presence))
	for _, p := range s.presence {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	slices.SortFunc(peers, func(a, b Peer) int { return strings.Compare(a.Handle, b.Handle) })
	c.JSON(http.StatusOK, peers)
}

// deliver pushes msg to the recipient's subscribers. When nobody is
// subscribed, or no subscriber has room for it, the message is queued
// instead. It reports false when the queue is full.
func (s *Server) deliver(to string, msg signaling.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pushed := false
	for ch := range s.subs[to] {
		select {
		case ch <- msg:
			pushed = true
		default:
			util.LogWarning("relay: push buffer full for %s", to)
		}
	}
	if pushed {
		return true
	}

	if len(s.inboxes[to]) >= maxInbox {
		return false
	}
	s.inboxes[to] = append(s.inboxes[to], msg)
	return true
}
