// Package status serves the health, metrics and node listing endpoints.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/rvald/voicelink/internal/metrics"
	"github.com/rvald/voicelink/internal/node"
)

// ServerConfig holds configuration for the status server.
type ServerConfig struct {
	Port  int
	Bind  string // "loopback" (127.0.0.1) or "lan" (0.0.0.0)
	Token string // optional bearer token for /metrics and /nodes
}

// Audio is the orchestrator view the health endpoint reports on.
type Audio interface {
	IsEnabled() bool
	HasConnectedNodes() bool
}

// NodeLister provides the node table. Nil in local mode.
type NodeLister interface {
	Statuses() []node.Status
}

// Health is the /health response body.
type Health struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Nodes   int    `json:"nodes"`
	Open    int    `json:"openNodes"`
}

// Server is the HTTP status server.
type Server struct {
	config  ServerConfig
	audio   Audio
	nodes   NodeLister
	httpSrv *http.Server
	addr    string
	mu      sync.Mutex
}

// NewServer creates a status server. nodes may be nil.
func NewServer(config ServerConfig, audio Audio, nodes NodeLister) *Server {
	return &Server{config: config, audio: audio, nodes: nodes}
}

// Addr returns the address the server is listening on, or "" if not yet ready.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.requireAuth(metrics.Handler().ServeHTTP))
	mux.HandleFunc("/nodes", s.requireAuth(s.handleNodes))
	return mux
}

// ListenAndServe starts the HTTP server and blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	bindAddr := "127.0.0.1"
	if s.config.Bind == "lan" {
		bindAddr = "0.0.0.0"
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bindAddr, s.config.Port))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpSrv = &http.Server{Handler: s.Handler()}
	s.mu.Unlock()

	slog.Info("status server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		s.httpSrv.Close()
	}()

	err = s.httpSrv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) health() Health {
	h := Health{Status: "ok", Backend: "local"}
	if !s.audio.IsEnabled() {
		return h
	}
	h.Backend = "remote"
	if s.nodes != nil {
		for _, st := range s.nodes.Statuses() {
			h.Nodes++
			if st.Open {
				h.Open++
			}
		}
	}
	if !s.audio.HasConnectedNodes() {
		h.Status = "degraded"
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.health())
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	statuses := []node.Status{}
	if s.nodes != nil {
		statuses = s.nodes.Statuses()
	}
	writeJSON(w, statuses)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("status response encode failed", "error", err)
	}
}
