package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditservice "custodia/internal/audit/service"
	auditstore "custodia/internal/audit/store"
	"custodia/internal/compliance/models"
	"custodia/internal/compliance/service"
	"custodia/internal/compliance/store"
	"custodia/internal/policy"
	"custodia/pkg/clock"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/testutil"
)

var handlerNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newComplianceRouter(t *testing.T) (http.Handler, *auditstore.InMemory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	auditSt := auditstore.NewInMemory()
	auditSvc := auditservice.New(auditSt, logger, nil, auditservice.WithClock(clock.Fixed(handlerNow)))

	svc := service.New(store.NewInMemory(), auditSvc, logger, nil, service.WithClock(clock.Fixed(handlerNow)))

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r, auditSt
}

func recordPayload(clientID string) map[string]any {
	return map[string]any{
		"clientId":        clientID,
		"preferredRegion": "EU",
		"backupRegion":    "UK",
		"status":          "Active",
		"dataProcessingAgreement": map[string]any{
			"status":         "Active",
			"effectiveDate":  handlerNow.AddDate(-1, 0, 0).Format(time.RFC3339),
			"expirationDate": handlerNow.AddDate(1, 0, 0).Format(time.RFC3339),
		},
		"auditTrail": map[string]any{
			"nextAudit":       handlerNow.AddDate(0, 3, 0).Format(time.RFC3339),
			"complianceScore": 90,
		},
	}
}

func onboardClient(t *testing.T, router http.Handler, clientID string) models.ComplianceRecord {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/compliance/records", recordPayload(clientID))
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	return *testutil.UnmarshalResponse[models.ComplianceRecord](t, rr)
}

func TestHandleOnboard(t *testing.T) {
	t.Run("creates a record", func(t *testing.T) {
		router, _ := newComplianceRouter(t)

		record := onboardClient(t, router, "client-1")
		assert.Equal(t, "client-1", record.ClientID)
		assert.Equal(t, int64(1), record.Version)
		assert.Equal(t, models.StatusActive, record.Status)
	})

	t.Run("rejects an invalid region", func(t *testing.T) {
		router, _ := newComplianceRouter(t)

		payload := recordPayload("client-2")
		payload["preferredRegion"] = "MARS"
		req := testutil.NewJSONRequest(t, http.MethodPost, "/compliance/records", payload)
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeInvalidInput))
	})

	t.Run("409 for a duplicate client", func(t *testing.T) {
		router, _ := newComplianceRouter(t)

		onboardClient(t, router, "client-3")
		req := testutil.NewJSONRequest(t, http.MethodPost, "/compliance/records", recordPayload("client-3"))
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusConflict)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeConflict))
	})
}

func TestHandleGetAndStatus(t *testing.T) {
	router, _ := newComplianceRouter(t)
	onboardClient(t, router, "client-get")

	t.Run("returns the record", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/compliance/records/client-get"))
		testutil.AssertStatus(t, rr, http.StatusOK)

		record := testutil.UnmarshalResponse[models.ComplianceRecord](t, rr)
		assert.Equal(t, "client-get", record.ClientID)
	})

	t.Run("derives status", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/compliance/records/client-get/status"))
		testutil.AssertStatus(t, rr, http.StatusOK)

		status := testutil.UnmarshalResponse[policy.ComplianceStatus](t, rr)
		assert.True(t, status.IsCompliant)
		assert.Empty(t, status.Issues)
		assert.Equal(t, 90, status.Score)
	})

	t.Run("404 for unknown client", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/compliance/records/client-missing"))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestHandleByRegion(t *testing.T) {
	router, _ := newComplianceRouter(t)
	onboardClient(t, router, "client-r1")

	t.Run("lists records for a region", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/compliance/records?region=EU"))
		testutil.AssertStatus(t, rr, http.StatusOK)

		records := testutil.UnmarshalResponse[[]models.ComplianceRecord](t, rr)
		assert.Len(t, *records, 1)
	})

	t.Run("matches the backup region too", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/compliance/records?region=UK"))
		testutil.AssertStatus(t, rr, http.StatusOK)

		records := testutil.UnmarshalResponse[[]models.ComplianceRecord](t, rr)
		assert.Len(t, *records, 1)
	})

	t.Run("rejects an unknown region", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/compliance/records?region=MARS"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("rejects a missing region", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/compliance/records"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestHandleQueries(t *testing.T) {
	router, _ := newComplianceRouter(t)
	onboardClient(t, router, "client-fine")

	// Score below threshold makes the record non-compliant.
	payload := recordPayload("client-low")
	payload["auditTrail"] = map[string]any{
		"nextAudit":       handlerNow.AddDate(0, 0, 20).Format(time.RFC3339),
		"complianceScore": 55,
	}
	req := testutil.NewJSONRequest(t, http.MethodPost, "/compliance/records", payload)
	testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusCreated)

	t.Run("non-compliant listing", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/compliance/non-compliant"))
		testutil.AssertStatus(t, rr, http.StatusOK)

		records := testutil.UnmarshalResponse[[]models.ComplianceRecord](t, rr)
		require.Len(t, *records, 1)
		assert.Equal(t, "client-low", (*records)[0].ClientID)
	})

	t.Run("expiring listing honors the horizon", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/compliance/expiring?horizonDays=25"))
		testutil.AssertStatus(t, rr, http.StatusOK)

		records := testutil.UnmarshalResponse[[]models.ComplianceRecord](t, rr)
		require.Len(t, *records, 1, "only the 20-day audit falls inside 25 days")
		assert.Equal(t, "client-low", (*records)[0].ClientID)
	})

	t.Run("rejects a non-positive horizon", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/compliance/expiring?horizonDays=0"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestHandleRecordChange(t *testing.T) {
	router, auditSt := newComplianceRouter(t)
	onboardClient(t, router, "client-chg")

	t.Run("appends a change attributed to the actor", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/compliance/records/client-chg/changes", map[string]any{
			"field":    "preferredRegion",
			"oldValue": "EU",
			"newValue": "UK",
			"reason":   "client request",
		})
		req = testutil.WithActor(req, "admin-1")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusNoContent)

		getRR := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/compliance/records/client-chg"))
		record := testutil.UnmarshalResponse[models.ComplianceRecord](t, getRR)
		require.Len(t, record.ChangeHistory, 1)
		assert.Equal(t, "admin-1", record.ChangeHistory[0].ChangedBy)

		events, err := auditSt.FindByEventType(t.Context(), "user_updated")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "compliance_change_recorded", events[0].Action)
		assert.Equal(t, "admin-1", events[0].UserID)
	})

	t.Run("rejects a missing field", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/compliance/records/client-chg/changes", map[string]any{
			"oldValue": "a", "newValue": "b",
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("404 for an unknown client", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/compliance/records/client-none/changes", map[string]any{
			"field": "status", "oldValue": "a", "newValue": "b",
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestHandleAddNote(t *testing.T) {
	router, _ := newComplianceRouter(t)
	onboardClient(t, router, "client-note")

	t.Run("appends a note", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/compliance/records/client-note/notes", map[string]any{
			"content": "renewal discussed",
		})
		req = testutil.WithActor(req, "legal-1")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusNoContent)

		getRR := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/compliance/records/client-note"))
		record := testutil.UnmarshalResponse[models.ComplianceRecord](t, getRR)
		require.Len(t, record.Notes, 1)
		assert.Equal(t, "legal-1", record.Notes[0].AddedBy)
	})

	t.Run("rejects empty content", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/compliance/records/client-note/notes", map[string]any{})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestHandleTransition(t *testing.T) {
	router, _ := newComplianceRouter(t)
	onboardClient(t, router, "client-tr")

	t.Run("transitions the status", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/compliance/records/client-tr/transition", map[string]any{
			"status": "Suspended",
			"reason": "payment lapsed",
		})
		req = testutil.WithActor(req, "admin-1")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		record := testutil.UnmarshalResponse[models.ComplianceRecord](t, rr)
		assert.Equal(t, models.StatusSuspended, record.Status)
		assert.Equal(t, int64(2), record.Version)
		require.Len(t, record.ChangeHistory, 1)
		assert.Equal(t, "status", record.ChangeHistory[0].Field)
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/compliance/records/client-tr/transition", map[string]any{
			"status": "Archived",
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}
