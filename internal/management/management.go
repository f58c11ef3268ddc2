// Package management provides a lightweight HTTP API for inspecting and
// configuring the running guardian, and the bridge page scripts use to
// reach the privileged context.
//
// Endpoints:
//
//	GET  /status       - uptime, classifier reachability, monitoring flag
//	GET  /report       - the last history-scan report (404 when none)
//	GET  /monitoring   - {"enabled":bool}
//	POST /monitoring   - set monitoring {"enabled":false}
//	GET  /preferences  - every settings flag
//	POST /preferences  - update any subset of the flags
//	POST /message      - one router request {"action":"detect","text":"..."}
//	GET  /metrics      - counters and latency
package management

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/sjson"

	"privacy-guardian/internal/config"
	"privacy-guardian/internal/logger"
	"privacy-guardian/internal/metrics"
	"privacy-guardian/internal/pii"
	"privacy-guardian/internal/router"
	"privacy-guardian/internal/store"
)

const maxBodyBytes = 1 << 20 // 1 MiB; scanHistory batches can be large

// State is the persisted state the API reads and writes.
type State interface {
	LastReport(ctx context.Context) (pii.ScanReport, bool, error)
	Flag(ctx context.Context, key string, def bool) (bool, error)
	SetFlag(ctx context.Context, key string, v bool) error
	Preferences(ctx context.Context) (store.Preferences, error)
}

// Server is the management API server.
type Server struct {
	cfg       *config.Config
	startTime time.Time
	state     State
	caller    router.Caller
	token     string           // bearer token for auth; empty = no auth
	metrics   *metrics.Metrics // nil = no metrics
	log       *logger.Logger
}

// New creates a management server. Requests to /message are forwarded to
// caller.
func New(cfg *config.Config, state State, caller router.Caller, m *metrics.Metrics, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	s := &Server{
		cfg:       cfg,
		startTime: time.Now(),
		state:     state,
		caller:    caller,
		token:     cfg.ManagementToken,
		metrics:   m,
		log:       log,
	}
	if s.token != "" {
		log.Info("init", "bearer token authentication enabled")
	}
	return s
}

// Handler returns the HTTP handler for the management API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/report", s.handleReport)
	mux.HandleFunc("/monitoring", s.handleMonitoring)
	mux.HandleFunc("/preferences", s.handlePreferences)
	mux.HandleFunc("/message", s.handleMessage)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return s.authMiddleware(mux)
}

// authMiddleware checks for a valid Bearer token if one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			s.log.Warnf("auth", "unauthorized access attempt from %s to %s", r.RemoteAddr, r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status     string `json:"status"`
		Uptime     string `json:"uptime"`
		Monitoring bool   `json:"isMonitoringEnabled"`
		Store      string `json:"store"`
		Backend    struct {
			URL     string `json:"url"`
			Online  bool   `json:"online"`
			Message string `json:"message,omitempty"`
			Error   string `json:"error,omitempty"`
		} `json:"backend"`
	}

	resp := response{
		Status: "running",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
		Store:  s.cfg.StoreBackend,
	}
	on, err := s.state.Flag(r.Context(), store.KeyMonitoringEnabled, true)
	if err != nil {
		s.log.Warnf("status", "monitoring flag unreadable: %v", err)
	}
	resp.Monitoring = on
	resp.Backend.URL = s.cfg.BackendURL

	if out, err := s.caller.Call(r.Context(), router.PingRequest{}); err != nil {
		resp.Backend.Error = err.Error()
	} else if p, ok := out.(router.PingResponse); ok {
		resp.Backend.Online, resp.Backend.Message, resp.Backend.Error = p.Online, p.Message, p.Error
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	rep, ok, err := s.state.LastReport(r.Context())
	if err != nil {
		s.log.Errorf("report", "read report: %v", err)
		http.Error(w, "report unavailable", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no scan report yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		on, err := s.state.Flag(r.Context(), store.KeyMonitoringEnabled, true)
		if err != nil {
			http.Error(w, "settings unavailable", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": on})
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, 1024)
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			http.Error(w, "invalid request: need {\"enabled\":true|false}", http.StatusBadRequest)
			return
		}
		if err := s.state.SetFlag(r.Context(), store.KeyMonitoringEnabled, *req.Enabled); err != nil {
			s.log.Errorf("monitoring", "persist flag: %v", err)
			http.Error(w, "settings unavailable", http.StatusInternalServerError)
			return
		}
		s.log.Infof("monitoring", "monitoring enabled=%v", *req.Enabled)
		s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
	default:
		http.Error(w, "GET or POST only", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, 1024)
		var req struct {
			Monitoring    *bool `json:"isMonitoringEnabled"`
			AutoScan      *bool `json:"autoScan"`
			Notifications *bool `json:"notificationsEnabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request: need a JSON object of boolean flags", http.StatusBadRequest)
			return
		}
		for key, v := range map[string]*bool{
			store.KeyMonitoringEnabled:    req.Monitoring,
			store.KeyAutoScan:             req.AutoScan,
			store.KeyNotificationsEnabled: req.Notifications,
		} {
			if v == nil {
				continue
			}
			if err := s.state.SetFlag(r.Context(), key, *v); err != nil {
				s.log.Errorf("preferences", "persist %s: %v", key, err)
				http.Error(w, "settings unavailable", http.StatusInternalServerError)
				return
			}
			s.log.Infof("preferences", "%s=%v", key, *v)
		}
	} else if r.Method != http.MethodGet {
		http.Error(w, "GET or POST only", http.StatusMethodNotAllowed)
		return
	}
	p, err := s.state.Preferences(r.Context())
	if err != nil {
		http.Error(w, "settings unavailable", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// handleMessage bridges one page request to the router. A timed-out call
// still answers with the action's empty response, plus an error field.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}
	req, err := router.Decode(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, callErr := s.caller.Call(r.Context(), req)
	out, err := router.Encode(resp)
	if err != nil {
		s.log.Errorf("message", "encode %s response: %v", req.Action(), err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	status := http.StatusOK
	if callErr != nil {
		status = http.StatusBadGateway
		if errors.Is(callErr, router.ErrTimeout) {
			status = http.StatusGatewayTimeout
		}
		if withErr, err := sjson.SetBytes(out, "error", callErr.Error()); err == nil {
			out = withErr
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(out, '\n')) //nolint:errcheck // client gone
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		http.Error(w, "metrics not enabled", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("json", "encode error: %v", err)
	}
}

// ListenAndServe starts the management HTTP server and shuts it down when
// ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.ManagementPort)
	s.log.Infof("listen", "listening on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck // best-effort shutdown
	}()
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
