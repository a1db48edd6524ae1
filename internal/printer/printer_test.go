package printer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPTransportPrint(t *testing.T) {
	var got printRequest
	var key string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := NewHTTPTransport(Config{Endpoint: server.URL})
	err := transport.Print(context.Background(), 7, map[string]interface{}{"order_no": "MD1"})
	if err != nil {
		t.Fatalf("print failed: %v", err)
	}
	if got.JobID != 7 || got.Receipt["order_no"] != "MD1" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if key != "print-job-7" {
		t.Fatalf("unexpected idempotency key: %s", key)
	}
}

func TestHTTPTransportFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if err := NewHTTPTransport(Config{Endpoint: server.URL}).Print(context.Background(), 1, nil); !errors.Is(err, ErrPrintFailed) {
		t.Fatalf("expected print failed, got %v", err)
	}
	if err := NewHTTPTransport(Config{}).Print(context.Background(), 1, nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected disabled, got %v", err)
	}
}
