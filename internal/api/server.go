// Package api serves the local state of the bridge over HTTP and pushes
// refresh notifications to WebSocket clients.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"remobridge/internal/account"
	"remobridge/internal/coordinator"
	"remobridge/internal/remo"

	"go.uber.org/zap"
)

// Server provides the local HTTP API over the cached account snapshots
type Server struct {
	accounts map[string]*account.Account
	logger   *zap.Logger
	server   *http.Server
	hub      *hub
	subs     []coordinator.Subscription
}

// NewServer creates the API server and subscribes it to every account's
// coordinator for WebSocket push
func NewServer(accounts []*account.Account, logger *zap.Logger, addr string) *Server {
	s := &Server{
		accounts: make(map[string]*account.Account, len(accounts)),
		logger:   logger.Named("api"),
		hub:      newHub(logger.Named("ws")),
	}
	for _, acct := range accounts {
		s.accounts[acct.Name] = acct
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/accounts/{account}/appliances", s.handleAppliances)
	mux.HandleFunc("GET /api/accounts/{account}/devices", s.handleDevices)
	mux.HandleFunc("POST /api/accounts/{account}/appliances/{id}/aircon_settings", s.handleAirconSettings)
	mux.HandleFunc("GET /ws", s.hub.handleWS)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	for _, acct := range accounts {
		acct := acct
		sub := acct.Coordinator.Subscribe(func() {
			s.hub.broadcastState(acct.Name, acct.Coordinator.State())
		})
		s.subs = append(s.subs, sub)
	}

	return s
}

// Handler exposes the mux for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving in the background
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("addr", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the server and releases the coordinator subscriptions
func (s *Server) Shutdown(ctx context.Context) error {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.hub.closeAll()
	return s.server.Shutdown(ctx)
}

// healthAccount reports per-account freshness on the health endpoint
type healthAccount struct {
	LastRefresh  time.Time `json:"last_refresh"`
	PollInterval string    `json:"poll_interval"`
	Appliances   int       `json:"appliances"`
	Devices      int       `json:"devices"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := struct {
		Status   string                   `json:"status"`
		Accounts map[string]healthAccount `json:"accounts"`
	}{
		Status:   "ok",
		Accounts: make(map[string]healthAccount, len(s.accounts)),
	}

	for name, acct := range s.accounts {
		entry := healthAccount{
			LastRefresh:  acct.Coordinator.LastRefresh(),
			PollInterval: acct.Coordinator.Interval().String(),
		}
		if state := acct.Coordinator.State(); state != nil {
			entry.Appliances = len(state.Appliances)
			entry.Devices = len(state.Devices)
		}
		response.Accounts[name] = entry
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleAppliances(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.account(w, r)
	if !ok {
		return
	}

	state := acct.Coordinator.State()
	if state == nil {
		s.writeJSON(w, http.StatusOK, map[string]*remo.Appliance{})
		return
	}
	s.writeJSON(w, http.StatusOK, state.Appliances)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.account(w, r)
	if !ok {
		return
	}

	state := acct.Coordinator.State()
	if state == nil {
		s.writeJSON(w, http.StatusOK, map[string]*remo.Device{})
		return
	}
	s.writeJSON(w, http.StatusOK, state.Devices)
}

func (s *Server) handleAirconSettings(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.account(w, r)
	if !ok {
		return
	}

	applianceID := r.PathValue("id")
	adapter, err := acct.Climate(applianceID)
	if err != nil {
		http.Error(w, fmt.Sprintf("appliance %s not found", applianceID), http.StatusNotFound)
		return
	}

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	values := make(map[string]string, len(body))
	for k, v := range body {
		switch k {
		case remo.SettingTemperature, remo.SettingOperationMode,
			remo.SettingAirVolume, remo.SettingAirDirection, remo.SettingButton:
			values[k] = v
		default:
			http.Error(w, fmt.Sprintf("unknown setting %q", k), http.StatusBadRequest)
			return
		}
	}
	if len(values) == 0 {
		http.Error(w, "no settings given", http.StatusBadRequest)
		return
	}

	if err := adapter.Send(r.Context(), values); err != nil {
		s.logger.Error("Command failed",
			zap.String("account", acct.Name),
			zap.String("appliance_id", applianceID),
			zap.Error(err))

		if errors.Is(err, coordinator.ErrNotFound) {
			http.Error(w, "appliance gone from latest snapshot", http.StatusNotFound)
			return
		}
		http.Error(w, "upstream command failed", http.StatusBadGateway)
		return
	}

	appliance, err := acct.Coordinator.Appliance(applianceID)
	if err != nil {
		http.Error(w, "appliance gone from latest snapshot", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, appliance)
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) (*account.Account, bool) {
	name := r.PathValue("account")
	acct, ok := s.accounts[name]
	if !ok {
		http.Error(w, fmt.Sprintf("account %q not found", name), http.StatusNotFound)
		return nil, false
	}
	return acct, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
