// Package web provides an HTTP status server for the relay-controller daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/sweeney/relay-controller/internal/status"
)

// Routes. /relays/<n>.json takes a 1-based relay number.
const (
	pathIndex     = "/"
	pathIndexHTML = "/index.html"
	pathStatus    = "/index.json"
	pathRelays    = "/relays.json"
	prefixRelay   = "/relays/"
)

// Server serves the relay status page and its JSON views over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc(pathIndex, s.handleIndex)
	mux.HandleFunc(pathIndexHTML, s.handleIndex)
	mux.HandleFunc(pathStatus, s.handleJSON)
	mux.HandleFunc(pathRelays, s.handleRelays)
	mux.HandleFunc(prefixRelay, s.handleRelay)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != pathIndex && r.URL.Path != pathIndexHTML {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleRelays(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, status.FormatRelaysJSON(s.tracker.Snapshot()))
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(strings.TrimPrefix(r.URL.Path, prefixRelay), ".json")
	if !ok {
		http.NotFound(w, r)
		return
	}
	num, err := strconv.Atoi(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	data, ok := status.FormatRelayJSON(s.tracker.Snapshot(), num)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, data)
}

func writeJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
