// Package server exposes the supervisor over HTTP: status and job queries,
// Prometheus metrics, and a WebSocket stream of lifecycle events.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/schedule"
	"github.com/teranos/warden/supervisor"
)

// Server is the warden status server. It is read-only: it reports what the
// supervisor is doing but never drives it.
type Server struct {
	addr       string
	supervisor *supervisor.Supervisor
	breaker    *supervisor.CircuitBreaker
	artifacts  *supervisor.ArtifactStore
	store      *schedule.Store
	logger     *zap.SugaredLogger

	httpServer *http.Server

	mu      sync.RWMutex
	clients map[*client]bool
}

// New creates a status server listening on port
func New(port int, sup *supervisor.Supervisor, breaker *supervisor.CircuitBreaker, artifacts *supervisor.ArtifactStore, store *schedule.Store, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		addr:       fmt.Sprintf(":%d", port),
		supervisor: sup,
		breaker:    breaker,
		artifacts:  artifacts,
		store:      store,
		logger:     log,
		clients:    make(map[*client]bool),
	}
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start begins serving and returns once the listener is bound. Serve errors
// after startup are logged, not returned; the supervisor is the main loop and
// a status-server hiccup must not take the gateway down.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "failed to bind status server on %s", s.addr)
	}

	s.logger.Infow("Status server listening", "addr", listener.Addr().String())

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Errorw("Status server stopped unexpectedly", "error", err)
		}
	}()

	return nil
}

// Shutdown stops the server, closing WebSocket clients first
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.clients = make(map[*client]bool)
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

// broadcast queues a message for every connected client. Slow clients whose
// send buffer is full miss the message rather than stall the rest.
func (s *Server) broadcast(msg interface{}) int {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		select {
		case c.sendMsg <- msg:
			sent++
		default:
		}
	}
	return sent
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c] = true
	count := len(s.clients)
	s.mu.Unlock()
	s.logger.Debugw("WebSocket client connected", "clients", count)
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	count := len(s.clients)
	s.mu.Unlock()
	s.logger.Debugw("WebSocket client disconnected", "clients", count)
}
