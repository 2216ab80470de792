// Package rpcserver exposes the three-endpoint HTTP/1.1-over-UDS control
// surface a local client drives the coordination core through: /generate,
// /status, and /shutdown.
package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/resource"
	"github.com/ManuGH/xg2g/internal/worker"
	"github.com/google/uuid"
)

// maxTextLength is the soft limit on request text; the worker still
// handles arbitrarily long text via chunking, so this is caller guidance
// rather than a hard rejection boundary.
const maxTextLength = 1000

// generateRequest is the wire shape of a POST /generate body.
type generateRequest struct {
	Text      string  `json:"text"`
	VoicePath *string `json:"voice_path"`
	VoiceName *string `json:"voice_name"`
}

type generateResponse struct {
	Status string `json:"status"`
	Ticket uint64 `json:"ticket"`
}

type statusResponse struct {
	Status      string  `json:"status"`
	ModelLoaded bool    `json:"model_loaded"`
	RAMPercent  float64 `json:"ram_percent"`
	RSSMB       uint64  `json:"rss_mb"`
}

type shutdownResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server binds a UNIX-domain socket and serves the three endpoints over
// net/http, so the transport's framing and header parsing reuse the
// standard library rather than a bespoke reader.
type Server struct {
	socketPath string
	listener   net.Listener
	httpServer *http.Server
	worker     *worker.Worker
	resource   *resource.Monitor

	// requestShutdown is invoked once, asynchronously, after the
	// /shutdown response has been written.
	requestShutdown func()
}

// New binds socketPath (removing any stale socket file left by a crashed
// prior instance) and constructs a Server ready for Serve.
func New(socketPath string, w *worker.Worker, mon *resource.Monitor, requestShutdown func()) (*Server, error) {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on unix socket %s: %w", socketPath, err)
	}

	s := &Server{
		socketPath:      socketPath,
		listener:        ln,
		worker:          w,
		resource:        mon,
		requestShutdown: requestShutdown,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/generate", s.handleGenerate)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/shutdown", s.handleShutdown)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

// SocketPath returns the UNIX-domain socket path this server was bound to.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Serve blocks, accepting connections until Close is called. It returns
// nil on an orderly Close, and any other listener error otherwise.
func (s *Server) Serve() error {
	log.WithComponent("rpcserver").Info().Str(log.FieldPath, s.socketPath).Msg("listening")
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close stops accepting new connections, waits for in-flight ones to finish
// until ctx is done, and removes the socket file.
func (s *Server) Close(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shut down rpc server: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove socket file: %w", err)
	}
	return nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.ContentLength <= 0 {
		writeError(w, http.StatusBadRequest, "empty request body")
		return
	}

	var body generateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	if body.Text == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty")
		return
	}
	if len(body.Text) > maxTextLength {
		log.WithComponent("rpcserver").Debug().
			Int(log.FieldTextBytes, len(body.Text)).
			Msg("text exceeds the soft length limit, chunking will split it")
	}

	req := worker.Request{
		Text:          body.Text,
		VoicePath:     derefOr(body.VoicePath, ""),
		VoiceName:     derefOr(body.VoiceName, ""),
		CorrelationID: uuid.NewString(),
	}

	ticket, err := s.worker.Submit(r.Context(), req)
	if err != nil {
		var wErr *worker.Error
		if errors.As(err, &wErr) && wErr.Kind == worker.KindInputInvalid {
			writeError(w, http.StatusBadRequest, wErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to queue request")
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{Status: "queued", Ticket: ticket})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var ramPercent float64
	if s.resource != nil {
		ramPercent = s.resource.Status().MemoryPercent
	}
	rssMB, err := resource.ProcessRSSMB()
	if err != nil {
		log.WithComponent("rpcserver").Warn().Err(err).Msg("failed to sample own RSS")
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:      "ok",
		ModelLoaded: s.worker.ModelLoaded(),
		RAMPercent:  ramPercent,
		RSSMB:       rssMB,
	})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, shutdownResponse{Status: "shutting_down"})

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	if s.requestShutdown != nil {
		go s.requestShutdown()
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
