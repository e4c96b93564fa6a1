package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/homesim-core/internal/home"
)

type thermostatRequest struct {
	Target *int `json:"target"`
}

type fanRequest struct {
	Speed *int `json:"speed"`
}

type securityRequest struct {
	Mode string `json:"mode"`
}

type doorRequest struct {
	Status string `json:"status"`
}

type scheduleRequest struct {
	Time     string `json:"time"`
	Duration *int   `json:"duration"`
}

type wifiConnectRequest struct {
	Name string `json:"name"`
}

// act runs fn on the caller's home and answers with the resulting snapshot.
func (s *Server) act(w http.ResponseWriter, r *http.Request, fn func(h *home.Home, rng home.Rand) error) {
	claims := claimsFromContext(r.Context())

	var snap *home.Snapshot
	err := s.sessions.Do(r.Context(), claims.SessionID, func(h *home.Home, rng home.Rand) error {
		if err := fn(h, rng); err != nil {
			return err
		}
		snap = h.Snapshot()
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// decodeBody decodes a JSON body, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleGetHome(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	snap, err := s.sessions.Snapshot(r.Context(), claims.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleTick advances the caller's home by one step on demand.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(h *home.Home, rng home.Rand) error {
		h.Tick(rng)
		return nil
	})
}

func (s *Server) handleToggleLight(w http.ResponseWriter, r *http.Request) {
	room := home.Room(chi.URLParam(r, "room"))
	s.act(w, r, func(h *home.Home, _ home.Rand) error {
		return h.ToggleLight(room)
	})
}

func (s *Server) handleSetThermostat(w http.ResponseWriter, r *http.Request) {
	var req thermostatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Target == nil {
		writeBadRequest(w, "target is required")
		return
	}
	s.act(w, r, func(h *home.Home, _ home.Rand) error {
		return h.SetThermostat(*req.Target)
	})
}

func (s *Server) handleSetFan(w http.ResponseWriter, r *http.Request) {
	var req fanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Speed == nil {
		writeBadRequest(w, "speed is required")
		return
	}
	s.act(w, r, func(h *home.Home, _ home.Rand) error {
		return h.SetFanSpeed(home.FanSpeed(*req.Speed))
	})
}

func (s *Server) handleToggleCamera(w http.ResponseWriter, r *http.Request) {
	id := home.CameraID(chi.URLParam(r, "id"))
	s.act(w, r, func(h *home.Home, _ home.Rand) error {
		return h.ToggleCamera(id)
	})
}

func (s *Server) handleSetSecurity(w http.ResponseWriter, r *http.Request) {
	var req securityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.act(w, r, func(h *home.Home, _ home.Rand) error {
		return h.SetSecuritySystem(home.SecurityMode(req.Mode))
	})
}

func (s *Server) handleSetDoor(w http.ResponseWriter, r *http.Request) {
	id := home.DoorID(chi.URLParam(r, "id"))
	var req doorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.act(w, r, func(h *home.Home, _ home.Rand) error {
		return h.SetDoor(id, home.DoorStatus(req.Status))
	})
}

func (s *Server) handleToggleIrrigation(w http.ResponseWriter, r *http.Request) {
	zone := home.ZoneID(chi.URLParam(r, "zone"))
	s.act(w, r, func(h *home.Home, _ home.Rand) error {
		return h.ToggleIrrigation(zone)
	})
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	zone := home.ZoneID(chi.URLParam(r, "zone"))
	var req scheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Duration == nil {
		writeBadRequest(w, "duration is required")
		return
	}
	s.act(w, r, func(h *home.Home, _ home.Rand) error {
		return h.UpdateIrrigationSchedule(zone, req.Time, *req.Duration)
	})
}

func (s *Server) handleConnectWifi(w http.ResponseWriter, r *http.Request) {
	var req wifiConnectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.act(w, r, func(h *home.Home, _ home.Rand) error {
		return h.ConnectWifi(req.Name)
	})
}

func (s *Server) handleRefreshWifi(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(h *home.Home, rng home.Rand) error {
		return h.RefreshWifi(rng)
	})
}

func (s *Server) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(h *home.Home, _ home.Rand) error {
		return h.ClearAlerts()
	})
}

// handleGetActivity returns the in-memory activity log, newest first.
func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var entries []home.ActivityEntry
	err := s.sessions.Do(r.Context(), claims.SessionID, func(h *home.Home, _ home.Rand) error {
		entries = h.Activity()
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
