package mailapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempmail/client/internal/config"
	"tempmail/client/internal/domain"
	"tempmail/client/internal/logger"
)

// maxResponseBytes 单次响应体上限
const maxResponseBytes = 32 << 20

// messageIDNamespace 用于为缺少 id 的邮件生成稳定 ID
var messageIDNamespace = uuid.MustParse("6f1c2b9e-5d0a-4a53-9a8e-2f3b1d7c4e10")

// APIError 后端返回的非 2xx 响应
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mail api: status %d: %s", e.Status, e.Body)
}

// Unwrap 429 与 5xx 视为暂时不可用
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusTooManyRequests || e.Status >= 500 {
		return domain.ErrUnavailable
	}
	return nil
}

// Client 后端临时邮箱 API 客户端
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient 创建 API 客户端
func NewClient(cfg config.APIConfig, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger.OrNop(log).Named("mailapi"),
	}
}

type createMailboxRequest struct {
	Username string `json:"username"`
	Domain   string `json:"domain"`
}

// CreateMailbox 在后端创建（预留）临时邮箱
func (c *Client) CreateMailbox(ctx context.Context, addr domain.Address) error {
	body, err := json.Marshal(createMailboxRequest{Username: addr.Username, Domain: addr.Domain})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/mailboxes", bytes.NewReader(body), nil)
}

// ListMessages 获取指定地址的全部邮件
func (c *Client) ListMessages(ctx context.Context, addr domain.Address) ([]domain.Message, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.mailboxPath(addr)+"/messages", nil, &raw); err != nil {
		return nil, err
	}

	messages, err := decodeMessages(raw)
	if err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	for i := range messages {
		ensureMessageID(&messages[i])
	}
	return messages, nil
}

// GetMessage 获取单封邮件详情
func (c *Client) GetMessage(ctx context.Context, addr domain.Address, id string) (*domain.Message, error) {
	var raw json.RawMessage
	path := c.mailboxPath(addr) + "/messages/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	var msg domain.Message
	if err := json.Unmarshal(unwrapEnvelope(raw), &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if msg.ID == "" {
		msg.ID = id
	}
	return &msg, nil
}

// DeleteMessage 删除单封邮件
func (c *Client) DeleteMessage(ctx context.Context, addr domain.Address, id string) error {
	path := c.mailboxPath(addr) + "/messages/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListDomains 获取后端当前可用的域名列表
func (c *Client) ListDomains(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/domains", nil, &raw); err != nil {
		return nil, err
	}

	raw = unwrapEnvelope(raw)
	var domains []string
	if err := json.Unmarshal(raw, &domains); err != nil {
		var wrapped struct {
			Domains []string `json:"domains"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("decode domains: %w", err)
		}
		domains = wrapped.Domains
	}

	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			out = append(out, d)
		}
	}
	return out, nil
}

// RandomUsername 向后端请求随机用户名
func (c *Client) RandomUsername(ctx context.Context) (string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/usernames/random", nil, &raw); err != nil {
		return "", err
	}

	raw = unwrapEnvelope(raw)
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		var wrapped struct {
			Username string `json:"username"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return "", fmt.Errorf("decode username: %w", err)
		}
		name = wrapped.Username
	}

	name = domain.NormalizeUsername(name)
	if name == "" {
		return "", fmt.Errorf("mail api returned empty username")
	}
	return name, nil
}

// Ping 检查后端是否可达（用于健康检查）
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListDomains(ctx)
	return err
}

func (c *Client) mailboxPath(addr domain.Address) string {
	return "/mailboxes/" + url.PathEscape(addr.String())
}

// do 发送请求并把 2xx 响应体解码到 out；网络错误归类为 ErrUnavailable
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out *json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		c.log.Debug("mail api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrUnavailable, err)
	}

	c.log.Debug("mail api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(truncate(string(data), 512))}
	}

	if out != nil {
		if len(bytes.TrimSpace(data)) == 0 {
			data = []byte("null")
		}
		*out = data
	}
	return nil
}

// decodeMessages 兼容裸数组以及 {"data": [...]} / {"messages": [...]} 两种包装
func decodeMessages(raw json.RawMessage) ([]domain.Message, error) {
	raw = unwrapEnvelope(raw)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []domain.Message{}, nil
	}

	if trimmed[0] == '[' {
		var list []domain.Message
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var wrapped struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Messages == nil {
		return []domain.Message{}, nil
	}
	return wrapped.Messages, nil
}

// unwrapEnvelope 拆开统一响应结构 {"code":..,"msg":..,"data":..}
func unwrapEnvelope(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil || len(env.Data) == 0 {
		return trimmed
	}
	return env.Data
}

// ensureMessageID 缺少 id 的邮件根据发件人、主题和时间生成稳定 ID
func ensureMessageID(msg *domain.Message) {
	if msg.ID != "" {
		return
	}
	seed := strings.Join([]string{
		msg.Sender,
		msg.Receiver,
		msg.Subject,
		msg.SortTime().Format(time.RFC3339Nano),
		msg.Message,
	}, "\x00")
	msg.ID = uuid.NewSHA1(messageIDNamespace, []byte(seed)).String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
