package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid    = errors.New("payment gateway config invalid")
	ErrRequestFailed    = errors.New("payment gateway request failed")
	ErrResponseInvalid  = errors.New("payment gateway response invalid")
	ErrSignatureInvalid = errors.New("payment gateway signature invalid")
)

// 交易状态常量
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPending = "pending"
)

// Config 支付核验网关配置
type Config struct {
	VerifyURL     string        // 核验接口地址，如 https://pay.example.com/v1/transaction/verify
	APIKey        string        // Bearer Token
	WebhookSecret string        // Webhook HMAC 密钥
	Timeout       time.Duration // 核验请求超时
}

func (c *Config) normalize() {
	c.VerifyURL = strings.TrimRight(strings.TrimSpace(c.VerifyURL), "/")
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// Transaction 网关返回的交易信息（核验响应与 webhook 共用）
type Transaction struct {
	Reference string                 `json:"reference"`
	OrderNo   string                 `json:"tx_ref"`
	Status    string                 `json:"status"`
	Amount    json.Number            `json:"amount"`
	Currency  string                 `json:"currency"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// AmountDecimal 解析金额
func (t *Transaction) AmountDecimal() (decimal.Decimal, error) {
	if t == nil || strings.TrimSpace(t.Amount.String()) == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is empty", ErrResponseInvalid)
	}
	amount, err := decimal.NewFromString(t.Amount.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount", ErrResponseInvalid)
	}
	return amount.Round(2), nil
}

// WebhookEvent webhook 事件
type WebhookEvent struct {
	Event string                 `json:"event"`
	Data  Transaction            `json:"data"`
	Raw   map[string]interface{} `json:"-"`
}

// Client 支付核验客户端
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建核验客户端
func NewClient(cfg Config) *Client {
	cfg.normalize()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Verify 调用网关核验交易，超时受 ctx 与客户端超时双重约束
func (c *Client) Verify(ctx context.Context, reference string) (*Transaction, error) {
	if c == nil || c.cfg.VerifyURL == "" {
		return nil, fmt.Errorf("%w: verify_url is required", ErrConfigInvalid)
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrConfigInvalid)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := c.cfg.VerifyURL + "/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, resp.StatusCode)
	}

	var envelope struct {
		Status  string      `json:"status"`
		Message string      `json:"message"`
		Data    Transaction `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.StatusCode >= 400 && envelope.Data.Status == "" {
		envelope.Data.Status = StatusFailed
	}
	tx := envelope.Data
	tx.Status = NormalizeStatus(tx.Status)
	if tx.Reference == "" {
		tx.Reference = reference
	}
	return &tx, nil
}

// Sign 计算 body 的 HMAC-SHA256 十六进制签名
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature 以常量时间比较签名；签名可带 "sha256=" 前缀
func VerifySignature(secret string, body []byte, signature string) error {
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("%w: webhook secret is empty", ErrConfigInvalid)
	}
	signature = strings.TrimSpace(signature)
	signature = strings.TrimPrefix(signature, "sha256=")
	provided, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil || len(provided) == 0 {
		return ErrSignatureInvalid
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return ErrSignatureInvalid
	}
	return nil
}

// ParseWebhook 解析 webhook 数据
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	if len(body) == 0 {
		return nil, ErrResponseInvalid
	}
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	var raw map[string]interface{}
	_ = json.Unmarshal(body, &raw)
	event.Raw = raw
	event.Data.Status = NormalizeStatus(event.Data.Status)
	if event.Data.Status == StatusPending && strings.HasSuffix(strings.ToLower(event.Event), ".success") {
		event.Data.Status = StatusSuccess
	}
	return &event, nil
}

// NormalizeStatus 把网关状态归一为 success/failed/pending
func NormalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "successful", "succeeded", "paid", "completed":
		return StatusSuccess
	case "failed", "failure", "cancelled", "canceled", "expired", "declined", "reversed":
		return StatusFailed
	default:
		return StatusPending
	}
}
