package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"signal-monitor-go/internal/notifier"

	"go.uber.org/zap"
)

// APIServer provides the HTTP interface for the signal monitor.
type APIServer struct {
	server        *http.Server
	monitor       *SignalMonitor
	notifications *NotificationManager
	channel       notifier.Notifier
	logger        *zap.Logger
}

// NewAPIServer creates a new APIServer listening on the given port.
func NewAPIServer(port int, monitor *SignalMonitor, notifications *NotificationManager,
	channel notifier.Notifier, logger *zap.Logger) *APIServer {
	s := &APIServer{
		monitor:       monitor,
		notifications: notifications,
		channel:       channel,
		logger:        logger.Named("api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/init", s.initHandler)
	mux.HandleFunc("/monitor/start", s.startHandler)
	mux.HandleFunc("/monitor/stop", s.stopHandler)
	mux.HandleFunc("/monitor/status", s.statusHandler)
	mux.HandleFunc("/preferences", s.preferencesHandler)
	mux.HandleFunc("/history", s.historyHandler)
	mux.HandleFunc("/alerts/dismiss", s.dismissHandler)
	mux.HandleFunc("/channel/test", s.channelTestHandler)
	mux.HandleFunc("/health", s.healthHandler)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Handler exposes the route table, mainly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) initHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var params InitParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.monitor.Init(params); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyInitialized):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrValidation):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"status": "initialized"})
}

func (s *APIServer) startHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	if err := s.monitor.Start(); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrNotInitialized):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

func (s *APIServer) stopHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	s.monitor.Stop()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	s.writeJSON(w, http.StatusOK, s.monitor.Status())
}

func (s *APIServer) preferencesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, s.notifications.Preferences())
	case http.MethodPut:
		var update PreferenceUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.notifications.UpdatePreferences(update); err != nil {
			if errors.Is(err, ErrValidation) {
				s.writeError(w, http.StatusBadRequest, err.Error())
			} else {
				s.writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		s.writeJSON(w, http.StatusOK, s.notifications.Preferences())
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "GET or PUT required")
	}
}

func (s *APIServer) historyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	var startMs, endMs *int64
	if v := r.URL.Query().Get("start"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid start timestamp")
			return
		}
		startMs = &ms
	}
	if v := r.URL.Query().Get("end"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid end timestamp")
			return
		}
		endMs = &ms
	}

	alerts, err := s.notifications.History(startMs, endMs)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

func (s *APIServer) dismissHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var body struct {
		ID uint `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == 0 {
		s.writeError(w, http.StatusBadRequest, "body must be {\"id\": <alert id>}")
		return
	}

	if err := s.notifications.Dismiss(body.ID); err != nil {
		if errors.Is(err, ErrAlertNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
		} else {
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

func (s *APIServer) channelTestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	if err := s.channel.Test(r.Context()); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reachable"})
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}
