package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	signature := Sign("secret", body)

	if err := VerifySignature("secret", body, signature); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if err := VerifySignature("secret", body, "sha256="+strings.ToUpper(signature)); err != nil {
		t.Fatalf("expected prefixed upper-case signature accepted, got %v", err)
	}
	if err := VerifySignature("other", body, signature); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected signature invalid with wrong secret, got %v", err)
	}
	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-3] = 'X'
	if err := VerifySignature("secret", tampered, signature); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected signature invalid for tampered body, got %v", err)
	}
	if err := VerifySignature("secret", body, "not-hex"); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected signature invalid for garbage, got %v", err)
	}
	if err := VerifySignature("", body, signature); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config invalid for empty secret, got %v", err)
	}
}

func TestParseWebhook(t *testing.T) {
	event, err := ParseWebhook([]byte(`{"event":"charge.success","data":{"reference":"ref-9","tx_ref":"MD1","amount":"120.50"}}`))
	if err != nil {
		t.Fatalf("parse webhook failed: %v", err)
	}
	if event.Data.Status != StatusSuccess {
		t.Fatalf("expected success derived from event name, got %s", event.Data.Status)
	}
	amount, err := event.Data.AmountDecimal()
	if err != nil || amount.String() != "120.5" {
		t.Fatalf("unexpected amount: %v %v", amount, err)
	}
	if event.Raw["event"] != "charge.success" {
		t.Fatalf("raw payload not kept: %v", event.Raw)
	}
	if _, err := ParseWebhook(nil); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected invalid for empty body, got %v", err)
	}
}

func TestClientVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasSuffix(r.URL.Path, "/ref-1") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":"failed","message":"not found","data":{}}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"status":"successful","amount":"99.90","tx_ref":"MD1"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{VerifyURL: server.URL + "/verify/", APIKey: "key", Timeout: time.Second})
	tx, err := client.Verify(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if tx.Status != StatusSuccess || tx.OrderNo != "MD1" || tx.Reference != "ref-1" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}

	missing, err := client.Verify(context.Background(), "ref-2")
	if err != nil {
		t.Fatalf("verify missing failed: %v", err)
	}
	if missing.Status != StatusFailed {
		t.Fatalf("expected failed status for unknown reference, got %s", missing.Status)
	}
}

func TestClientVerifyTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(Config{VerifyURL: server.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Verify(context.Background(), "slow")
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected request failed on timeout, got %v", err)
	}
}
