package printer

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
	ErrDisabled    = errors.New("printer disabled")
	ErrPrintFailed = errors.New("print failed")
)

// Config 打印网关配置
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// HTTPTransport 把小票内容投递到门店打印网关
type HTTPTransport struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPTransport 创建 HTTP 打印通道
func NewHTTPTransport(cfg Config) *HTTPTransport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPTransport{
		endpoint:   strings.TrimSpace(cfg.Endpoint),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type printRequest struct {
	JobID   uint                   `json:"job_id"`
	Receipt map[string]interface{} `json:"receipt"`
}

// Print 发送打印请求；网关以 2xx 表示已接收
func (t *HTTPTransport) Print(ctx context.Context, jobID uint, receipt map[string]interface{}) error {
	if t == nil || t.endpoint == "" {
		return ErrDisabled
	}
	body, err := json.Marshal(printRequest{JobID: jobID, Receipt: receipt})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", fmt.Sprintf("print-job-%d", jobID))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPrintFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: http status %d: %s", ErrPrintFailed, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
