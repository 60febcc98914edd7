// Package handler wires audit endpoints to the audit service. The HTTP layer
// validates transport-level input and supplies request context; business rules
// stay in the service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"custodia/internal/audit"
	"custodia/internal/audit/store"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/requestcontext"
)

// Service defines the interface for audit operations.
type Service interface {
	Record(ctx context.Context, event audit.Event) (audit.Event, error)
	Get(ctx context.Context, id string) (audit.Event, error)
	ByEventType(ctx context.Context, eventType audit.EventType) ([]audit.Event, error)
	ByUser(ctx context.Context, userID string) ([]audit.Event, error)
	SecurityEvents(ctx context.Context, sinceDays int) ([]audit.Event, error)
	ComplianceEvents(ctx context.Context, sinceDays int) ([]audit.Event, error)
	FailedEvents(ctx context.Context, sinceDays int) ([]audit.Event, error)
	Summary(ctx context.Context, sinceDays int) ([]store.EventCount, error)
	Archive(ctx context.Context, id string) (audit.Event, error)
}

// Handler wires audit endpoints to the audit service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an audit handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/audit/events", h.HandleRecord)
	r.Get("/audit/events/{eventID}", h.HandleGet)
	r.Get("/audit/events", h.HandleList)
	r.Get("/audit/security", h.HandleSecurity)
	r.Get("/audit/compliance", h.HandleCompliance)
	r.Get("/audit/failed", h.HandleFailed)
	r.Get("/audit/summary", h.HandleSummary)
	r.Post("/audit/events/{eventID}/archive", h.HandleArchive)
}

// RecordRequest is the wire shape for recording an audit event. Request
// context fields (request ID, IP, user agent, timestamp) are filled from
// middleware, not from the body.
type RecordRequest struct {
	EventType          string          `json:"eventType"`
	UserID             string          `json:"userId"`
	ResourceType       string          `json:"resourceType"`
	ResourceID         string          `json:"resourceId"`
	Action             string          `json:"action"`
	Description        string          `json:"description"`
	ThreatLevel        string          `json:"threatLevel"`
	Success            *bool           `json:"success"`
	FailureReason      string          `json:"failureReason"`
	OldValue           json.RawMessage `json:"oldValue"`
	NewValue           json.RawMessage `json:"newValue"`
	Changes            json.RawMessage `json:"changes"`
	Regulation         string          `json:"regulation"`
	ComplianceRequired bool            `json:"complianceRequired"`
}

// HandleRecord handles POST /audit/events.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[RecordRequest](w, r, h.logger)
	if !ok {
		return
	}
	success := true
	if req.Success != nil {
		success = *req.Success
	}

	event := audit.Event{
		EventType:          audit.EventType(req.EventType),
		UserID:             req.UserID,
		ResourceType:       req.ResourceType,
		ResourceID:         req.ResourceID,
		Action:             req.Action,
		Description:        req.Description,
		RequestID:          requestcontext.RequestID(ctx),
		IPAddress:          requestcontext.ClientIP(ctx),
		UserAgent:          requestcontext.UserAgent(ctx),
		ThreatLevel:        audit.ThreatLevel(req.ThreatLevel),
		Success:            success,
		FailureReason:      req.FailureReason,
		OldValue:           req.OldValue,
		NewValue:           req.NewValue,
		Changes:            req.Changes,
		Regulation:         audit.Regulation(req.Regulation),
		ComplianceRequired: req.ComplianceRequired,
		Timestamp:          requestcontext.Now(ctx),
	}

	recorded, err := h.service.Record(ctx, event)
	if err != nil {
		h.logger.ErrorContext(ctx, "record audit event failed",
			"request_id", requestcontext.RequestID(ctx),
			"event_type", req.EventType,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, recorded)
}

// HandleGet handles GET /audit/events/{eventID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.Get(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

// HandleList handles GET /audit/events filtered by ?type= or ?user=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if eventType := r.URL.Query().Get("type"); eventType != "" {
		if !audit.EventType(eventType).Valid() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown event type: "+eventType))
			return
		}
		events, err := h.service.ByEventType(ctx, audit.EventType(eventType))
		h.writeEvents(ctx, w, events, err)
		return
	}
	if userID := r.URL.Query().Get("user"); userID != "" {
		events, err := h.service.ByUser(ctx, userID)
		h.writeEvents(ctx, w, events, err)
		return
	}
	httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "type or user query parameter required"))
}

// HandleSecurity handles GET /audit/security?sinceDays=N.
func (h *Handler) HandleSecurity(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.SecurityEvents(r.Context(), sinceDays(r))
	h.writeEvents(r.Context(), w, events, err)
}

// HandleCompliance handles GET /audit/compliance?sinceDays=N.
func (h *Handler) HandleCompliance(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ComplianceEvents(r.Context(), sinceDays(r))
	h.writeEvents(r.Context(), w, events, err)
}

// HandleFailed handles GET /audit/failed?sinceDays=N.
func (h *Handler) HandleFailed(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.FailedEvents(r.Context(), sinceDays(r))
	h.writeEvents(r.Context(), w, events, err)
}

// HandleSummary handles GET /audit/summary?sinceDays=N.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Summary(r.Context(), sinceDays(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit summary failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, counts)
}

// HandleArchive handles POST /audit/events/{eventID}/archive.
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.Archive(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) writeEvents(ctx context.Context, w http.ResponseWriter, events []audit.Event, err error) {
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

// sinceDays parses the lookback window, defaulting to 30 days.
func sinceDays(r *http.Request) int {
	if raw := r.URL.Query().Get("sinceDays"); raw != "" {
		if days, err := strconv.Atoi(raw); err == nil && days > 0 {
			return days
		}
	}
	return 30
}
