package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tempmail/client/internal/domain"
)

// EventLookupUnread 监控地址出现未读邮件
const EventLookupUnread = "lookup.unread"

// WebhookNotifier 以签名 POST 请求投递通知
type WebhookNotifier struct {
	url        string
	secret     string
	httpClient *http.Client
}

// NewWebhookNotifier 创建 Webhook 通知器
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register 未配置地址时推送不可用
func (w *WebhookNotifier) Register(ctx context.Context) error {
	if w.url == "" {
		return domain.ErrPushUnavailable
	}
	return nil
}

// webhookEvent 投递的事件体
type webhookEvent struct {
	ID        string       `json:"id"`
	Event     string       `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
	Data      Notification `json:"data"`
}

// Notify 投递一次，非 2xx 视为失败
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	if w.url == "" {
		return domain.ErrPushUnavailable
	}

	event := webhookEvent{
		ID:        uuid.New().String(),
		Event:     EventLookupUnread,
		Timestamp: time.Now().UTC(),
		Data:      n,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", generateSignature(payload, w.secret))
	req.Header.Set("X-Webhook-Event", EventLookupUnread)
	req.Header.Set("X-Webhook-ID", event.ID)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// generateSignature HMAC-SHA256 签名（十六进制）
func generateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature 校验签名（供接收方使用）
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := generateSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
