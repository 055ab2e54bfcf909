package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rentfolio/propsync/internal/webhook"
)

type fakeEventStore struct {
	failed []webhook.EventRecord
	byID   map[string]*webhook.EventRecord
}

func (f *fakeEventStore) FailedEvents(_ context.Context, _, _ int) ([]webhook.EventRecord, error) {
	return f.failed, nil
}

func (f *fakeEventStore) GetByID(_ context.Context, id string) (*webhook.EventRecord, error) {
	return f.byID[id], nil
}

type fakeRedeliverer struct {
	result webhook.Result
	called *webhook.EventRecord
}

func (f *fakeRedeliverer) Redeliver(_ context.Context, rec *webhook.EventRecord) (webhook.Result, error) {
	f.called = rec
	return f.result, nil
}

func adminEventsRouter(h *AdminEventsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/admin/webhook-events/failed", h.ListFailed)
	r.Post("/admin/webhook-events/{eventID}/redeliver", h.Redeliver)
	return r
}

func TestAdminEventsListFailed(t *testing.T) {
	store := &fakeEventStore{failed: []webhook.EventRecord{{
		ID:           "evt-1",
		WebhookID:    "101",
		EventName:    "Lease.Created",
		Status:       webhook.StatusDeadLetter,
		RetryCount:   3,
		ErrorMessage: "timeout",
		ReceivedAt:   time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}}}
	router := adminEventsRouter(NewAdminEventsHandler(store, &fakeRedeliverer{}, nil))

	req := httptest.NewRequest(http.MethodGet, "/admin/webhook-events/failed?limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Events []failedEventItem `json:"events"`
		Count  int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Count != 1 || body.Events[0].EventName != "Lease.Created" || body.Events[0].RetryCount != 3 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestAdminEventsRedeliver(t *testing.T) {
	stored := &webhook.EventRecord{ID: "evt-1", WebhookID: "101", EventName: "Lease.Created", Payload: []byte(`{}`)}
	store := &fakeEventStore{byID: map[string]*webhook.EventRecord{"evt-1": stored}}
	pipeline := &fakeRedeliverer{result: webhook.Result{EventID: "evt-1", Success: true}}
	router := adminEventsRouter(NewAdminEventsHandler(store, pipeline, nil))

	req := httptest.NewRequest(http.MethodPost, "/admin/webhook-events/evt-1/redeliver", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if pipeline.called == nil || pipeline.called.ID != "evt-1" {
		t.Fatalf("redeliverer not called with the stored record")
	}
}

func TestAdminEventsRedeliverUnknownEvent(t *testing.T) {
	router := adminEventsRouter(NewAdminEventsHandler(&fakeEventStore{}, &fakeRedeliverer{}, nil))

	req := httptest.NewRequest(http.MethodPost, "/admin/webhook-events/missing/redeliver", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
