// Package web provides the HTTP status page and setpoint API for the
// chamber-control daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/sweeney/chamber-control/internal/logger"
	"github.com/sweeney/chamber-control/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	cmds       chan<- Command
	log        *logger.Logger
}

// New creates a Server that reads state from the given tracker and queues
// setpoint commands on cmds. A nil cmds disables the API.
func New(addr string, tracker *status.Tracker, cmds chan<- Command, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{tracker: tracker, cmds: cmds, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/api/mode", s.handleCommand(CommandMode))
	mux.HandleFunc("/api/beer", s.handleCommand(CommandBeer))
	mux.HandleFunc("/api/fridge", s.handleCommand(CommandFridge))

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the request router.
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
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleCommand accepts either a JSON body {"value": ...} or a form field
// "value". Form posts are redirected back to the status page.
func (s *Server) handleCommand(kind CommandKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.cmds == nil {
			http.Error(w, "setpoint API disabled", http.StatusServiceUnavailable)
			return
		}

		isJSON := strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
		var raw string
		if isJSON {
			var req commandRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid JSON body", http.StatusBadRequest)
				return
			}
			raw = string(req.Value)
		} else {
			raw = r.FormValue("value")
		}

		cmd, err := parseCommand(kind, raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		select {
		case s.cmds <- cmd:
		default:
			s.log.Warnw("command queue full, dropping", "command", cmd.String())
			http.Error(w, "command queue full", http.StatusServiceUnavailable)
			return
		}
		s.log.Infow("command queued", "command", cmd.String(), "remote", r.RemoteAddr)

		if !isJSON {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"queued": cmd.String()})
	}
}
