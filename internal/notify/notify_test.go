package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestWhatsAppSenderSend(t *testing.T) {
	var got whatsAppMessage
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewWhatsAppSender(WhatsAppConfig{Endpoint: server.URL, Token: "tok"})
	if err := sender.Send(context.Background(), "+251911000001", "hello"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if auth != "Bearer tok" {
		t.Fatalf("unexpected auth header: %s", auth)
	}
	if got.To != "+251911000001" || got.Text.Body != "hello" || got.Type != "text" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestWhatsAppSenderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	sender := NewWhatsAppSender(WhatsAppConfig{Endpoint: server.URL})
	err := sender.Send(context.Background(), "+251911000001", "hello")
	if !errors.Is(err, ErrSendFailed) || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected send failed with status, got %v", err)
	}

	empty := NewWhatsAppSender(WhatsAppConfig{})
	if err := empty.Send(context.Background(), "+251911000001", "hello"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config invalid, got %v", err)
	}
	if err := sender.Send(context.Background(), " ", "hello"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config invalid for empty recipient, got %v", err)
	}
}

func TestTelegramAlerterBroadcasts(t *testing.T) {
	var mu sync.Mutex
	var chats []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"alerts","username":"alerts_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			_ = r.ParseForm()
			mu.Lock()
			chats = append(chats, r.FormValue("chat_id"))
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	alerter, err := NewTelegramAlerter(TelegramConfig{
		BotToken:    "token",
		ChatIDs:     []int64{100, 200},
		APIEndpoint: server.URL + "/bot%s/%s",
	})
	if err != nil {
		t.Fatalf("create alerter failed: %v", err)
	}
	if err := alerter.Alert(context.Background(), "kitchen closed"); err != nil {
		t.Fatalf("alert failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(chats) != 2 || chats[0] != "100" || chats[1] != "200" {
		t.Fatalf("unexpected chats: %v", chats)
	}
}

func TestTelegramAlerterRequiresToken(t *testing.T) {
	if _, err := NewTelegramAlerter(TelegramConfig{}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config invalid, got %v", err)
	}
}
