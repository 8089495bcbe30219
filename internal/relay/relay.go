// Package relay is a small in-memory signaling relay for local testing. It
// queues offers and answers per handle, pushes them to WebSocket subscribers
// and records heartbeat presence. Nothing is persisted.
package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/1ureka/tangysync/internal/config"
	"github.com/1ureka/tangysync/internal/signaling"
	"github.com/1ureka/tangysync/internal/util"
)

// APIPrefix is where the relay endpoints are mounted.
const APIPrefix = "/api"

const (
	handleKey      = "handle"
	subscriberSize = 32
	maxInbox       = 256
)

// Peer is one entry of the presence table.
type Peer struct {
	Handle   string    `json:"handle"`
	Busy     bool      `json:"busy"`
	LastSeen time.Time `json:"last_seen"`
}

// Server holds all relay state.
type Server struct {
	mu       sync.Mutex
	inboxes  map[string][]signaling.Message
	presence map[string]Peer
	subs     map[string]map[chan signaling.Message]struct{}
	limiters map[string]*rate.Limiter

	limit rate.Limit
	burst int

	upgrader websocket.Upgrader
	engine   *gin.Engine
}

// New creates a relay throttled per handle as described by cfg.
func New(cfg config.ServerConfig) *Server {
	s := &Server{
		inboxes:  make(map[string][]signaling.Message),
		presence: make(map[string]Peer),
		subs:     make(map[string]map[chan signaling.Message]struct{}),
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if s.limit <= 0 {
		s.limit = rate.Inf
	}
	if s.burst <= 0 {
		s.burst = 1
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving the relay.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	util.LogInfo("relay listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	api := router.Group(APIPrefix)
	api.GET("/health", s.handleHealth)

	authed := api.Group("", s.authenticate, s.throttle)
	authed.POST(signaling.PathOffer, s.handlePost(signaling.MsgTypeOffer))
	authed.POST(signaling.PathAnswer, s.handlePost(signaling.MsgTypeAnswer))
	authed.GET(signaling.PathInbox, s.handleInbox)
	authed.GET(signaling.PathSubscribe, s.handleSubscribe)
	authed.POST(signaling.PathHeartbeat, s.handleHeartbeat)
	authed.GET("/presence", s.handlePresence)

	return router
}

// requestLogger routes gin's access log through the shared logger at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		util.LogDebug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
