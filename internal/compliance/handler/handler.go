// Package handler wires compliance record endpoints to the compliance service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"custodia/internal/compliance/models"
	"custodia/internal/policy"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/requestcontext"
)

// Service defines the interface for compliance record operations.
type Service interface {
	Onboard(ctx context.Context, record models.ComplianceRecord) (models.ComplianceRecord, error)
	Get(ctx context.Context, clientID string) (models.ComplianceRecord, error)
	Status(ctx context.Context, clientID string) (policy.ComplianceStatus, error)
	ByRegion(ctx context.Context, region models.Region) ([]models.ComplianceRecord, error)
	NonCompliant(ctx context.Context) ([]models.ComplianceRecord, error)
	ExpiringSoon(ctx context.Context, horizonDays int) ([]models.ComplianceRecord, error)
	RecordChange(ctx context.Context, clientID, field, oldValue, newValue, changedBy, reason string) error
	AddNote(ctx context.Context, clientID, content, addedBy string) error
	TransitionStatus(ctx context.Context, clientID string, newStatus models.RecordStatus, actor, reason string) (models.ComplianceRecord, error)
}

// Handler wires compliance endpoints to the compliance service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a compliance handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts compliance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compliance/records", h.HandleOnboard)
	r.Get("/compliance/records", h.HandleByRegion)
	r.Get("/compliance/records/{clientID}", h.HandleGet)
	r.Get("/compliance/records/{clientID}/status", h.HandleStatus)
	r.Post("/compliance/records/{clientID}/changes", h.HandleRecordChange)
	r.Post("/compliance/records/{clientID}/notes", h.HandleAddNote)
	r.Post("/compliance/records/{clientID}/transition", h.HandleTransition)
	r.Get("/compliance/non-compliant", h.HandleNonCompliant)
	r.Get("/compliance/expiring", h.HandleExpiring)
}

// HandleOnboard handles POST /compliance/records.
func (h *Handler) HandleOnboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	record, ok := httputil.Decode[models.ComplianceRecord](w, r, h.logger)
	if !ok {
		return
	}
	created, err := h.service.Onboard(ctx, record)
	if err != nil {
		h.logger.ErrorContext(ctx, "onboard compliance record failed",
			"request_id", requestcontext.RequestID(ctx),
			"client_id", record.ClientID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// HandleGet handles GET /compliance/records/{clientID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleStatus handles GET /compliance/records/{clientID}/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// HandleByRegion handles GET /compliance/records?region=EU.
func (h *Handler) HandleByRegion(w http.ResponseWriter, r *http.Request) {
	region := models.Region(r.URL.Query().Get("region"))
	if !region.Valid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown region: "+string(region)))
		return
	}
	records, err := h.service.ByRegion(r.Context(), region)
	h.writeRecords(r.Context(), w, records, err)
}

// HandleNonCompliant handles GET /compliance/non-compliant.
func (h *Handler) HandleNonCompliant(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.NonCompliant(r.Context())
	h.writeRecords(r.Context(), w, records, err)
}

// HandleExpiring handles GET /compliance/expiring?horizonDays=N.
func (h *Handler) HandleExpiring(w http.ResponseWriter, r *http.Request) {
	horizon := 30
	if raw := r.URL.Query().Get("horizonDays"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "horizonDays must be a positive integer"))
			return
		}
		horizon = parsed
	}
	records, err := h.service.ExpiringSoon(r.Context(), horizon)
	h.writeRecords(r.Context(), w, records, err)
}

// ChangeRequest is the wire shape for appending a change-history entry.
// ChangedBy defaults to the authenticated admin actor.
type ChangeRequest struct {
	Field    string `json:"field"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
	Reason   string `json:"reason"`
}

// HandleRecordChange handles POST /compliance/records/{clientID}/changes.
func (h *Handler) HandleRecordChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[ChangeRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Field == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "field is required"))
		return
	}
	clientID := chi.URLParam(r, "clientID")
	err := h.service.RecordChange(ctx, clientID, req.Field, req.OldValue, req.NewValue,
		requestcontext.ActorID(ctx), req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "record change failed",
			"request_id", requestcontext.RequestID(ctx),
			"client_id", clientID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NoteRequest is the wire shape for appending a note.
type NoteRequest struct {
	Content string `json:"content"`
}

// HandleAddNote handles POST /compliance/records/{clientID}/notes.
func (h *Handler) HandleAddNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[NoteRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Content == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "content is required"))
		return
	}
	clientID := chi.URLParam(r, "clientID")
	if err := h.service.AddNote(ctx, clientID, req.Content, requestcontext.ActorID(ctx)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransitionRequest is the wire shape for a soft status transition.
type TransitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// HandleTransition handles POST /compliance/records/{clientID}/transition.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[TransitionRequest](w, r, h.logger)
	if !ok {
		return
	}
	clientID := chi.URLParam(r, "clientID")
	record, err := h.service.TransitionStatus(ctx, clientID,
		models.RecordStatus(req.Status), requestcontext.ActorID(ctx), req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "status transition failed",
			"request_id", requestcontext.RequestID(ctx),
			"client_id", clientID,
			"status", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) writeRecords(ctx context.Context, w http.ResponseWriter, records []models.ComplianceRecord, err error) {
	if err != nil {
		h.logger.ErrorContext(ctx, "compliance query failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}
