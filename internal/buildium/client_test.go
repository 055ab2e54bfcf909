package buildium

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		BaseURL:      server.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		MaxAttempts:  3,
		BaseDelay:    time.Millisecond,
	}, nil)
}

func TestClientRetriesAnyNonSuccessStatus(t *testing.T) {
	var requests int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if got := r.Header.Get("x-buildium-client-id"); got != "client-id" {
			t.Errorf("missing auth header, got %q", got)
		}
		if requests < 3 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Id": 42, "Name": "Main St"}`))
	})

	property, err := client.GetProperty(context.Background(), 42)
	if err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if property.ID != 42 {
		t.Fatalf("unexpected property: %+v", property)
	}
	if requests != 3 {
		t.Fatalf("expected 3 attempts, got %d", requests)
	}
}

func TestClientExhaustsRetriesOnPersistentFailure(t *testing.T) {
	var requests int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	_, err := client.GetLease(context.Background(), 7)
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected APIError with status 503, got %v", err)
	}
	if requests != 3 {
		t.Fatalf("expected 3 attempts, got %d", requests)
	}
}

func TestClientDoesNotRetryMalformedBody(t *testing.T) {
	var requests int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Id": `))
	})

	_, err := client.GetGLAccount(context.Background(), 9)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	if requests != 1 {
		t.Fatalf("malformed 2xx body must not be retried, got %d attempts", requests)
	}
}
