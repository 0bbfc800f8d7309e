// Package status exposes a read-only snapshot of the running
// controller over HTTP (GET /status): whether it's running, connected
// to the platform gateway, its current state, the last non-fatal error
// (if any), and the cycling monitor's hysteresis health
// classification. It also serves POST /override, which applies a
// manual override to the running controller loop.
package status

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hvac-controller/internal/controllerloop"
	"github.com/thatsimonsguy/hvac-controller/internal/cyclingmonitor"
	"github.com/thatsimonsguy/hvac-controller/internal/gateway"
	"github.com/thatsimonsguy/hvac-controller/internal/model"
	"github.com/thatsimonsguy/hvac-controller/internal/statemachine"
)

// Snapshot is the JSON shape returned by GET /status.
type Snapshot struct {
	Running       bool                  `json:"running"`
	Connected     bool                  `json:"connected"`
	CurrentState  model.HVACState       `json:"currentState"`
	LastError     string                `json:"lastError,omitempty"`
	CyclingHealth cyclingmonitor.Health `json:"cyclingHealth"`
}

// Server serves the status snapshot. Holds no state of its own;
// every field is read fresh from the controller loop and machine on
// each request.
type Server struct {
	machine *statemachine.Machine
	gw      gateway.PlatformGateway
	loop    *controllerloop.Loop
}

// NewServer builds a Server over the given running components.
func NewServer(machine *statemachine.Machine, gw gateway.PlatformGateway, loop *controllerloop.Loop) *Server {
	return &Server{machine: machine, gw: gw, loop: loop}
}

// Snapshot builds the current status snapshot without touching HTTP;
// both HTTP handlers return it, and tests call it directly.
func (s *Server) Snapshot() Snapshot {
	snap := Snapshot{
		Running:       s.machine.Running(),
		Connected:     s.gw.Connected(),
		CurrentState:  s.machine.State(),
		CyclingHealth: s.loop.CyclingHealth(),
	}
	if err := s.loop.LastError(); err != nil {
		snap.LastError = err.Error()
	}
	return snap
}

// Start serves the status endpoint on the given port. Blocks until
// the server exits or errors; callers typically run it in a goroutine.
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()

	corsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		mux.ServeHTTP(w, r)
	})

	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/override", s.handleOverride)

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info().Str("address", addr).Msg("starting status server")

	return http.ListenAndServe(addr, corsHandler)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.Snapshot())
}

// overrideRequest is the JSON body POST /override accepts. ExpiresIn,
// given in seconds, is resolved to an absolute deadline relative to
// the time the request is handled; zero means no expiry.
type overrideRequest struct {
	Mode       string   `json:"mode"`
	TargetTemp *float64 `json:"targetTemp,omitempty"`
	ExpiresIn  int      `json:"expiresInSeconds,omitempty"`
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	mode := model.SystemMode(req.Mode)
	switch mode {
	case model.ModeAuto, model.ModeHeatOnly, model.ModeCoolOnly, model.ModeOff:
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid mode %q", req.Mode))
		return
	}

	var expiresAt *time.Time
	if req.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(req.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	if err := s.loop.ManualOverride(mode, req.TargetTemp, expiresAt); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, s.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}
