package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/client/internal/config"
	"tempmail/client/internal/counter"
	"tempmail/client/internal/domain"
	"tempmail/client/internal/health"
	"tempmail/client/internal/monitoring"
	"tempmail/client/internal/service"
	"tempmail/client/internal/settings"
	"tempmail/client/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubAPI 所有地址共享同一组邮件
type stubAPI struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (s *stubAPI) CreateMailbox(ctx context.Context, addr domain.Address) error { return nil }

func (s *stubAPI) ListMessages(ctx context.Context, addr domain.Address) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...), nil
}

func (s *stubAPI) GetMessage(ctx context.Context, addr domain.Address, id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			msg := m
			return &msg, nil
		}
	}
	return nil, domain.ErrUnavailable
}

func (s *stubAPI) DeleteMessage(ctx context.Context, addr domain.Address, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.messages[:0:0]
	for _, m := range s.messages {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

func (s *stubAPI) ListDomains(ctx context.Context) ([]string, error) {
	return nil, domain.ErrUnavailable
}

func (s *stubAPI) RandomUsername(ctx context.Context) (string, error) {
	return "", domain.ErrUnavailable
}

type stubClipboard struct{ text string }

func (c *stubClipboard) WriteAll(text string) error {
	c.text = text
	return nil
}

type stubKV struct {
	mu sync.Mutex
	n  int64
}

func (k *stubKV) Incr(ctx context.Context, key string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.n++
	return k.n, nil
}

func (k *stubKV) Get(ctx context.Context, key string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.n, nil
}

func (k *stubKV) Close() error { return nil }

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	router   *gin.Engine
	api      *stubAPI
	identity *service.IdentityService
	inbox    *service.InboxPoller
	metrics  *monitoring.Metrics
	clip     *stubClipboard
}

func at(s string) domain.Timestamp {
	t, _ := time.Parse(time.RFC3339, s)
	return domain.Timestamp{Time: t}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Mailbox: config.MailboxConfig{
			Domains:           []string{"temp.mail", "drop.box"},
			UsernameLength:    10,
			MinUsernameLength: 4,
			PollInterval:      30 * time.Second,
			InactivityTimeout: 5 * time.Minute,
			PageSize:          2,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	api := &stubAPI{messages: []domain.Message{
		{ID: "1", Subject: "first", Message: "plain body", Date: at("2024-01-01T10:00:00Z")},
		{ID: "2", Subject: "second", Message: "# Hello\n[link](url)", Date: at("2024-01-02T10:00:00Z"),
			Attachments: []domain.Attachment{{Filename: "report.pdf", Data: domain.AttachmentData{Base64: "aGVsbG8="}}}},
		{ID: "3", Subject: "third", Message: "<p>hi</p>", Date: at("2024-01-03T10:00:00Z")},
	}}
	repo := memory.NewStore()
	clip := &stubClipboard{}

	identity := service.NewIdentityService(api, repo, cfg.Mailbox, false, nil, service.WithClipboard(clip))
	require.NoError(t, identity.Init(context.Background()))

	inbox := service.NewInboxPoller(api, service.InboxPollerConfig{
		Interval:          cfg.Mailbox.PollInterval,
		InactivityTimeout: cfg.Mailbox.InactivityTimeout,
	}, nil, nil, nil)
	inbox.SetAddress(identity.Current())
	require.NoError(t, inbox.Refresh(context.Background()))

	prefs := settings.NewStore(repo, nil)
	lookup := service.NewLookupManager(api, repo, prefs, nil, nil, service.LookupManagerConfig{}, nil, nil)
	metrics := monitoring.NewMetrics(nil)

	router := NewRouter(RouterDependencies{
		Config:          cfg,
		IdentityService: identity,
		InboxPoller:     inbox,
		LookupManager:   lookup,
		Settings:        prefs,
		Counter:         counter.NewWithKV(&stubKV{}, config.CounterConfig{Limit: 1, Window: time.Hour}, nil),
		ContactService:  service.NewContactService(config.SMTPConfig{}, nil),
		HealthChecker:   health.NewHealthChecker(repo, nil, nil),
		Metrics:         metrics,
	})

	return &testServer{router: router, api: api, identity: identity, inbox: inbox, metrics: metrics, clip: clip}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w, _ = s.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tempmail_client_http_requests_total")
}

func TestIdentityRoutes(t *testing.T) {
	s := newTestServer(t)

	t.Run("获取当前地址", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/api/identity", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var st service.IdentityState
		require.NoError(t, json.Unmarshal(env.Data, &st))
		assert.True(t, strings.HasSuffix(st.Address, "@temp.mail"))
		assert.Equal(t, []string{"temp.mail", "drop.box"}, st.Domains)
	})

	t.Run("短用户名警告后仍可生成", func(t *testing.T) {
		w, env := s.do(t, http.MethodPut, "/api/identity/username", gin.H{"username": "AB"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), `"warning":{"length":2,"min":4}`)

		_, env = s.do(t, http.MethodPut, "/api/identity/domain", gin.H{"domain": "drop.box"})
		assert.Equal(t, CodeSuccess, env.Code)

		w, env = s.do(t, http.MethodPost, "/api/identity/generate", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var st service.IdentityState
		require.NoError(t, json.Unmarshal(env.Data, &st))
		assert.Equal(t, "ab@drop.box", st.Address)
		assert.Equal(t, domain.UsernameCustom, st.Mode)
	})

	t.Run("非法输入", func(t *testing.T) {
		w, env := s.do(t, http.MethodPut, "/api/identity/username", gin.H{"username": "bad name!"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "用户名只能包含字母、数字、点、下划线和连字符", env.Msg)

		w, _ = s.do(t, http.MethodPut, "/api/identity/domain", gin.H{"domain": "evil.example"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = s.do(t, http.MethodPut, "/api/identity/username", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("重置并复制", func(t *testing.T) {
		_, env := s.do(t, http.MethodPost, "/api/identity/reset", nil)
		assert.Contains(t, string(env.Data), `"mode":"generated"`)

		w, _ := s.do(t, http.MethodPost, "/api/identity/copy", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, s.identity.Current().String(), s.clip.text)
	})
}

func TestInboxRoutes(t *testing.T) {
	s := newTestServer(t)

	t.Run("排序与分页", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/api/inbox?page=2&sort=asc", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Items      []domain.Message `json:"items"`
			Page       int              `json:"page"`
			TotalPages int              `json:"totalPages"`
			Total      int              `json:"total"`
			Sort       string           `json:"sort"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Equal(t, 2, resp.Page)
		assert.Equal(t, 2, resp.TotalPages)
		assert.Equal(t, 3, resp.Total)
		assert.Equal(t, "asc", resp.Sort)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "3", resp.Items[0].ID)

		_, env = s.do(t, http.MethodGet, "/api/inbox?page=99", nil)
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Equal(t, 2, resp.Page)
		assert.Equal(t, "desc", resp.Sort)
		assert.Equal(t, "1", resp.Items[0].ID)

		w, _ = s.do(t, http.MethodGet, "/api/inbox?page=abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("邮件详情", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/api/inbox/2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), `"format":"markdown"`)
		assert.Contains(t, string(env.Data), `"defaultTab":"markdown"`)
		assert.Contains(t, string(env.Data), `"filename":"report.pdf"`)
	})

	t.Run("附件下载", func(t *testing.T) {
		w, _ := s.do(t, http.MethodGet, "/api/inbox/2/attachments/0", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hello", w.Body.String())
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="report.pdf"`)

		w, _ = s.do(t, http.MethodGet, "/api/inbox/2/attachments/5", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w, _ = s.do(t, http.MethodGet, "/api/inbox/2/attachments/x", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("删除邮件", func(t *testing.T) {
		w, _ := s.do(t, http.MethodDelete, "/api/inbox/1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, s.inbox.Messages(), 2)
	})

	t.Run("刷新与活动", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/api/inbox/refresh", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), `"state":"idle"`)

		w, env = s.do(t, http.MethodPost, "/api/activity", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), `"active":true`)
	})
}

func TestLookupRoutes(t *testing.T) {
	s := newTestServer(t)

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		w, env := s.do(t, http.MethodPost, "/api/lookup", gin.H{"address": name + "@temp.mail"})
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, CodeCreated, env.Code)
	}

	t.Run("列表已满", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/api/lookup", gin.H{"address": "f@temp.mail"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "监控列表已满", env.Msg)
	})

	t.Run("重复地址", func(t *testing.T) {
		w, _ := s.do(t, http.MethodPost, "/api/lookup", gin.H{"address": "A@TEMP.MAIL"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("无效地址", func(t *testing.T) {
		w, _ := s.do(t, http.MethodPost, "/api/lookup", gin.H{"address": "not-an-address"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("标记已读与删除", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/api/lookup/a@temp.mail/read", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), `"readCount":3`)

		w, _ = s.do(t, http.MethodDelete, "/api/lookup/a@temp.mail", nil)
		require.Equal(t, http.StatusOK, w.Code)
		w, _ = s.do(t, http.MethodDelete, "/api/lookup/a@temp.mail", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w, _ = s.do(t, http.MethodPost, "/api/lookup/a@temp.mail/read", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("错误的 Content-Type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/lookup", strings.NewReader("f@temp.mail"))
		req.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})
}

func TestPreferencesRoutes(t *testing.T) {
	s := newTestServer(t)

	_, env := s.do(t, http.MethodGet, "/api/preferences", nil)
	assert.JSONEq(t, `{"syncFrequencyMinutes":0,"themeOverride":"system"}`, string(env.Data))

	// 未设置同步频率时监控列表按默认 30 秒轮询
	_, env = s.do(t, http.MethodGet, "/api/lookup", nil)
	assert.Contains(t, string(env.Data), `"intervalSeconds":30`)

	w, _ := s.do(t, http.MethodPut, "/api/preferences", gin.H{"syncFrequencyMinutes": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodPut, "/api/preferences", gin.H{"syncFrequencyMinutes": 2, "themeOverride": "dark"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"syncFrequencyMinutes":2,"themeOverride":"dark"}`, string(env.Data))

	_, env = s.do(t, http.MethodGet, "/api/lookup", nil)
	assert.Contains(t, string(env.Data), `"intervalSeconds":120`)

	w, env = s.do(t, http.MethodPut, "/api/preferences", gin.H{"themeOverride": "light"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"syncFrequencyMinutes":2,"themeOverride":"light"}`, string(env.Data))
}

func TestVisitorRoutes(t *testing.T) {
	s := newTestServer(t)

	_, env := s.do(t, http.MethodPost, "/api/visitors", nil)
	assert.JSONEq(t, `{"count":1,"available":true}`, string(env.Data))

	// 超过本地限流后静默降级
	w, env := s.do(t, http.MethodGet, "/api/visitors", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0,"available":false}`, string(env.Data))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.RateLimitBlocks.WithLabelValues("visitor_counter")))
}

func TestContactAndConfigRoutes(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/contact", gin.H{"name": "Alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, MsgValidationFailed, env.Msg)
	assert.JSONEq(t, `{"fields":["email","subject","message"]}`, string(env.Data))

	w, _ = s.do(t, http.MethodPost, "/api/contact", service.ContactForm{
		Name: "Alice", Email: "alice@example.com", Subject: "Hi", Message: "Hello",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"defaultDomain":"temp.mail"`)
	assert.Contains(t, string(env.Data), `"pollIntervalSeconds":30`)
	assert.Contains(t, string(env.Data), `"visitorCounter":true`)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"后端不可用", domain.ErrUnavailable, http.StatusServiceUnavailable},
		{"不活跃", domain.ErrInactive, http.StatusConflict},
		{"限流", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"剪贴板", service.ErrClipboardUnavailable, http.StatusServiceUnavailable},
		{"未知错误", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := mapError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, msg)
		})
	}
}
