package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aimpointer/backend/internal/config"
	"github.com/aimpointer/backend/internal/logging"
	"github.com/aimpointer/backend/internal/metrics"
	"github.com/aimpointer/backend/internal/pointer"
	"github.com/aimpointer/backend/internal/protocol"
	"github.com/aimpointer/backend/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type Server struct {
	config         *config.Config
	registry       *session.Registry
	bounds         pointer.Bounds
	actuator       pointer.Actuator
	metrics        *metrics.Metrics
	metricsHandler http.Handler
	privacy        *session.PrivacyFilter
	limiter        *rate.Limiter
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	upgrader       websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	http   *http.Server
	closed bool
}

func NewServer(cfg *config.Config, registry *session.Registry, bounds pointer.Bounds, actuator pointer.Actuator, m *metrics.Metrics) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   cfg,
		registry: registry,
		bounds:   bounds,
		actuator: pointer.WithTimeout(actuator, cfg.Pointer.Timeout),
		metrics:  m,
		privacy: &session.PrivacyFilter{
			MaskRemoteAddrs: cfg.Privacy.MaskRemoteAddrs,
			MaskSessionIDs:  cfg.Privacy.MaskSessionIDs,
		},
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		ctx:            ctx,
		cancel:         cancel,
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	if cfg.Server.UpgradeRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.UpgradeRate), max(cfg.Server.UpgradeBurst, 1))
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	return s
}

// SetMetricsHandler configures the handler served at /metrics.
// Must be called before Routes.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.metricsHandler = h
}

// Routes returns the HTTP handler. A WebSocket upgrade is accepted on any
// path because the phone client dials the bare host:port.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.MatcherFunc(isUpgrade).HandlerFunc(s.handleWS)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", s.handleSessions).Methods(http.MethodGet)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler).Methods(http.MethodGet)
	}

	if dir := s.config.Server.StaticDir; dir != "" {
		logging.Logger.Info("serving client UI", "dir", dir)
		r.PathPrefix("/").Handler(cors(http.FileServer(http.Dir(dir))))
	}

	return r
}

func isUpgrade(r *http.Request, _ *mux.RouteMatch) bool {
	return websocket.IsWebSocketUpgrade(r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.Warn("ws upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	s.serveSession(conn, r.RemoteAddr)
}

// serveSession runs one connection from registration to teardown. It
// returns when the peer disconnects, a frame cannot be decoded, a write
// fails, or the server shuts down.
func (s *Server) serveSession(conn *websocket.Conn, remoteAddr string) {
	id := uuid.NewString()
	masked := s.privacy.Apply(session.Info{ID: id, RemoteAddr: remoteAddr})
	logger := logging.WithSession(masked.ID, masked.RemoteAddr)

	sess := session.New(id, remoteAddr, s.bounds, s.actuator, s.metrics, logger)
	if err := s.registry.Add(sess.Info()); err != nil {
		s.metrics.SessionsRejected.Inc()
		logger.Warn("session rejected", "error", err)
		s.closeWith(conn, websocket.CloseTryAgainLater, "too many sessions")
		conn.Close()
		return
	}
	s.metrics.SessionsTotal.Inc()
	s.metrics.ActiveSessions.Inc()
	logger.Info("client connected", "active", s.registry.Len())

	done := make(chan struct{})
	defer func() {
		close(done)
		sess.Close()
		s.registry.Remove(id)
		s.metrics.ActiveSessions.Dec()
		conn.Close()
		logger.Info("client disconnected",
			"calibrated", !sess.Calibration().IsZero(),
			"active", s.registry.Len())
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("session panic", "panic", r)
		}
	}()

	cfg := s.config.Server
	conn.SetReadLimit(cfg.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})
	go s.keepalive(conn, done)

	if err := s.write(conn, sess.Welcome()); err != nil {
		logger.Warn("welcome write failed", "error", err)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("read error", "error", err)
			}
			return
		}
		// Any frame proves the peer is alive, even one too busy to pong.
		conn.SetReadDeadline(time.Now().Add(cfg.PongWait))

		msg, err := protocol.Decode(data)
		if err != nil {
			s.metrics.MalformedFrames.Inc()
			logger.Warn("closing session", "error", err)
			s.closeWith(conn, websocket.CloseInvalidFramePayloadData, "malformed frame")
			return
		}

		reply, err := sess.Handle(s.ctx, msg)
		if err != nil {
			logger.Warn("handle failed", "type", msg.Type, "error", err)
			return
		}
		if reply == nil {
			continue
		}
		if err := s.write(conn, reply); err != nil {
			logger.Warn("write failed", "type", msg.Type, "error", err)
			return
		}
	}
}

func (s *Server) write(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(s.config.Server.WriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) closeWith(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(s.config.Server.WriteWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

// keepalive pings the peer until done is closed. Pongs extend the read
// deadline, so idle clients stay connected and dead ones time out. Server
// shutdown closes the connection, which unblocks the read loop.
func (s *Server) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	cfg := s.config.Server
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-s.ctx.Done():
			s.closeWith(conn, websocket.CloseGoingAway, "server shutting down")
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":        "ok",
		"sessions":      s.registry.Len(),
		"screen_width":  s.bounds.Width,
		"screen_height": s.bounds.Height,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.privacy.FilterSlice(s.registry.List()))
}

// checkOrigin accepts every origin when no allow-list is configured: the
// client page is served from another port (or another host) on the LAN.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.allowedOrigins[origin] {
		return true
	}
	if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
		return s.allowedHosts[parsed.Host]
	}
	return false
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until Shutdown. TLS is used when a certificate and
// key are configured. It returns nil at once if Shutdown already ran.
func (s *Server) ListenAndServe() error {
	cfg := s.config.Server
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.http = srv
	s.mu.Unlock()

	var err error
	if s.config.TLSEnabled() {
		logging.Logger.Info("server listening", "addr", srv.Addr, "tls", true)
		err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
	} else {
		logging.Logger.Warn("server listening without TLS", "addr", srv.Addr)
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and closes every live session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.mu.Lock()
	s.closed = true
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
