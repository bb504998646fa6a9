// Package bridge exposes session and profile control over HTTP.
package bridge

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deadhop/engine/internal/dispatch"
	"github.com/deadhop/engine/internal/session"
	"github.com/deadhop/engine/internal/store/profiles"
	"github.com/deadhop/engine/pkg/httpx"
)

// Handler drives the session engine and the profile store.
type Handler struct {
	engine   *session.Engine
	profiles *profiles.Store
}

// New creates the bridge handler.
func New(engine *session.Engine, store *profiles.Store) *Handler {
	return &Handler{engine: engine, profiles: store}
}

// RegisterRoutes mounts the bridge endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/servers", h.handleListServers)
	r.Put("/servers", h.handleReplaceServers)

	r.Get("/sessions", h.handleListSessions)
	r.Post("/sessions", h.handleOpenSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Delete("/sessions/{sessionID}", h.handleCloseSession)
	r.Post("/sessions/{sessionID}/input", h.handleInput)
	r.Put("/sessions/{sessionID}/target", h.handleSetTarget)
	r.Put("/sessions/{sessionID}/monitor", h.handleSetMonitor)
}

func (h *Handler) handleListServers(w http.ResponseWriter, r *http.Request) {
	list, err := h.profiles.List()
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"servers": list})
}

func (h *Handler) handleReplaceServers(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Servers []profiles.Profile `json:"servers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.profiles.Replace(payload.Servers); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"sessions": h.engine.Sessions()})
}

func (h *Handler) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		// Profile names a stored profile; Server supplies one inline.
		Profile string            `json:"profile"`
		Server  *profiles.Profile `json:"server"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var p profiles.Profile
	switch {
	case payload.Server != nil:
		p = *payload.Server
	case payload.Profile != "":
		stored, err := h.profiles.Get(payload.Profile)
		if err != nil {
			httpx.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		p = stored
	default:
		httpx.RespondError(w, http.StatusBadRequest, "profile or server is required")
		return
	}

	id, err := h.engine.Open(p)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.engine.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		httpx.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	httpx.RespondJSON(w, http.StatusOK, info)
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Close(chi.URLParam(r, "sessionID")); err != nil {
		httpx.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	httpx.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "closing"})
}

func (h *Handler) handleInput(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := h.engine.Session(id); err != nil {
		httpx.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.engine.Send(id, payload.Text); err != nil {
		var cmdErr *dispatch.CommandError
		if errors.As(err, &cmdErr) {
			httpx.RespondError(w, http.StatusBadRequest, cmdErr.Error())
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) handleSetTarget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var payload struct {
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Target == "" {
		httpx.RespondError(w, http.StatusBadRequest, "target is required")
		return
	}
	if err := h.engine.SetTarget(id, payload.Target); err != nil {
		httpx.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "switched"})
}

// handleSetMonitor replaces the friends list watched via MONITOR. An
// empty list clears it.
func (h *Handler) handleSetMonitor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var payload struct {
		Nicks []string `json:"nicks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.engine.SetMonitorList(id, payload.Nicks); err != nil {
		httpx.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
