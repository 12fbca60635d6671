package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/whse-session/internal/uiconfig"
	"github.com/yegors/whse-session/internal/whse"
	"github.com/yegors/whse-session/pkg/logger"
)

// Pinger checks that storage is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains the API handlers
type Handler struct {
	sessions *whse.Service
	registry *uiconfig.Registry
	pinger   Pinger
	logger   *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(sessions *whse.Service, registry *uiconfig.Registry, pinger Pinger, logger *logger.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		registry: registry,
		pinger:   pinger,
		logger:   logger.Named("api-handler"),
	}
}

// SessionStatus is the interpreted view of a session's status message
type SessionStatus struct {
	Raw        string          `json:"raw"`
	Message    string          `json:"message"`
	Conditions map[string]bool `json:"conditions"`
	HasOrder   bool            `json:"has_order"`
	HasBin     bool            `json:"has_bin"`
	HasPallet  bool            `json:"has_pallet"`
	HasCarton  bool            `json:"has_carton"`
}

// SessionResponse is the body returned for a loaded session
type SessionResponse struct {
	Session *whse.Session `json:"session"`
	Status  SessionStatus `json:"status"`
}

func newSessionResponse(s *whse.Session) SessionResponse {
	return SessionResponse{
		Session: s,
		Status: SessionStatus{
			Raw:        s.Status,
			Message:    s.StatusMessage(),
			Conditions: s.Conditions().Map(),
			HasOrder:   s.HasOrder(),
			HasBin:     s.HasBin(),
			HasPallet:  s.HasPallet(),
			HasCarton:  s.HasCarton(),
		},
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.pinger.Ping(r.Context()); err != nil {
		h.logger.Warn("Storage ping failed", logger.Error(err))
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	WriteJSON(w, code, map[string]any{"status": status})
}

// GetSession returns the session record and its interpreted status
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if isDebug(r) {
		h.writeQuery(w, func() (string, error) { return h.sessions.ExplainLoad(sessionID) })
		return
	}

	session, err := h.sessions.Load(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, err, sessionID)
		return
	}

	WriteJSON(w, http.StatusOK, newSessionResponse(session))
}

// SessionExists reports whether a session record exists
func (h *Handler) SessionExists(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if isDebug(r) {
		h.writeQuery(w, func() (string, error) { return h.sessions.ExplainExists(sessionID) })
		return
	}

	exists, err := h.sessions.Exists(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, err, sessionID)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"exists":     exists,
	})
}

// StartSession asks the backend to initiate a warehouse session.
// The record does not have to exist yet.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.sessions.StartSession(r.Context(), sessionID); err != nil {
		h.writeServiceError(w, err, sessionID)
		return
	}

	writeAccepted(w, sessionID, whse.ActionInitiateWhse)
}

// StartPicking asks the backend to start picking
func (h *Handler) StartPicking(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, whse.ActionStartPick, h.sessions.StartPicking)
}

// StartPickPack asks the backend to start pick pack
func (h *Handler) StartPickPack(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, whse.ActionStartPickPack, h.sessions.StartPickPack)
}

// EndSession asks the backend to log the session out
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, whse.ActionLogout, h.sessions.EndSession)
}

func (h *Handler) sessionAction(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, *whse.Session) error) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	if err := fn(r.Context(), session); err != nil {
		h.writeServiceError(w, err, session.SessionID())
		return
	}

	writeAccepted(w, session.SessionID(), action)
}

// GetPickedItems returns the items picked for an order line
func (h *Handler) GetPickedItems(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	itemID := r.URL.Query().Get("itemID")

	if isDebug(r) {
		h.writeQuery(w, func() (string, error) { return h.sessions.ExplainPickedItems(session, itemID) })
		return
	}

	items, err := h.sessions.PickedItems(r.Context(), session, itemID)
	if err != nil {
		h.writeServiceError(w, err, session.SessionID())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": session.SessionID(),
		"ordernbr":   session.OrderNumber,
		"itemid":     itemID,
		"items":      items,
	})
}

// GetPickedQtyTotal returns the total quantity picked for an order line
func (h *Handler) GetPickedQtyTotal(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	itemID := r.URL.Query().Get("itemID")

	if isDebug(r) {
		h.writeQuery(w, func() (string, error) { return h.sessions.ExplainPickedQtyTotal(session, itemID) })
		return
	}

	total, err := h.sessions.PickedQtyTotal(r.Context(), session, itemID)
	if err != nil {
		h.writeServiceError(w, err, session.SessionID())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": session.SessionID(),
		"ordernbr":   session.OrderNumber,
		"itemid":     itemID,
		"total":      total,
	})
}

// DeletePickedItems removes every picked item for the session
func (h *Handler) DeletePickedItems(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	if isDebug(r) {
		h.writeQuery(w, func() (string, error) { return h.sessions.ExplainDeletePickedItems(session) })
		return
	}

	n, err := h.sessions.DeletePickedItems(r.Context(), session)
	if err != nil {
		h.writeServiceError(w, err, session.SessionID())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": session.SessionID(),
		"deleted":    n,
	})
}

// PublishUIConfig builds and publishes the bin configuration for the session's warehouse
func (h *Handler) PublishUIConfig(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	payload, err := h.sessions.PublishUIConfig(r.Context(), session)
	if err != nil {
		h.writeServiceError(w, err, session.SessionID())
		return
	}

	WriteJSON(w, http.StatusOK, payload)
}

// GetUIConfig returns the latest payload published under a key
func (h *Handler) GetUIConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	payload, ok := h.registry.Get(key)
	if !ok {
		writeError(w, http.StatusNotFound, "no ui config published for "+key)
		return
	}

	WriteJSON(w, http.StatusOK, payload)
}

func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) (*whse.Session, bool) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.sessions.Load(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, err, sessionID)
		return nil, false
	}
	return session, true
}

func (h *Handler) writeQuery(w http.ResponseWriter, explain func() (string, error)) {
	query, err := explain()
	if err != nil {
		h.logger.Error("Failed to render query", logger.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"query": query})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, sessionID string) {
	switch {
	case errors.Is(err, whse.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "whse session not found: "+sessionID)
	case errors.Is(err, whse.ErrWarehouseNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, whse.ErrBackendRequest):
		h.logger.Error("Backend request failed",
			logger.String("session_id", sessionID),
			logger.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("Session operation failed",
			logger.String("session_id", sessionID),
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isDebug(r *http.Request) bool {
	debug, _ := strconv.ParseBool(r.URL.Query().Get("debug"))
	return debug
}

func writeAccepted(w http.ResponseWriter, sessionID, action string) {
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":     "sent",
		"session_id": sessionID,
		"action":     action,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
