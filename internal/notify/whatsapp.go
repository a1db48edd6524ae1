package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrConfigInvalid = errors.New("notify config invalid")
	ErrSendFailed    = errors.New("notify send failed")
)

// WhatsAppConfig WhatsApp 网关配置
type WhatsAppConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// WhatsAppSender 通过 HTTP 网关发送 WhatsApp 文本消息
type WhatsAppSender struct {
	cfg        WhatsAppConfig
	httpClient *http.Client
}

// NewWhatsAppSender 创建 WhatsApp 发送器
func NewWhatsAppSender(cfg WhatsAppConfig) *WhatsAppSender {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &WhatsAppSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type whatsAppMessage struct {
	To   string `json:"to"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Send 发送消息，非 2xx 响应视为失败
func (s *WhatsAppSender) Send(ctx context.Context, to, text string) error {
	if s == nil || s.cfg.Endpoint == "" {
		return fmt.Errorf("%w: whatsapp endpoint is empty", ErrConfigInvalid)
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("%w: recipient is empty", ErrConfigInvalid)
	}

	msg := whatsAppMessage{To: to, Type: "text"}
	msg.Text.Body = text
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: http status %d: %s", ErrSendFailed, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
