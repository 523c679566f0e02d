package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempmail/client/internal/config"
	"tempmail/client/internal/domain"
	"tempmail/client/internal/monitoring"
	"tempmail/client/internal/pubsub"
	"tempmail/client/internal/storage"
)

// IdentityState 当前邮箱身份的快照
type IdentityState struct {
	Address        string              `json:"address"`
	Username       string              `json:"username"`
	Domain         string              `json:"domain"`
	Mode           domain.UsernameKind `json:"mode"`
	CustomUsername string              `json:"customUsername,omitempty"`
	SelectedDomain string              `json:"selectedDomain"`
	Domains        []string            `json:"domains"`
	LastError      string              `json:"lastError,omitempty"`
}

// IdentityService 管理当前临时邮箱地址
//
// 地址只整体替换；生成失败时保留上一次成功的地址。
type IdentityService struct {
	api       MailAPI
	repo      storage.IdentityRepository
	clipboard Clipboard
	validator *domain.EmailValidator
	metrics   *monitoring.Metrics
	logger    *zap.Logger

	usernameLength  int
	remoteUsernames bool

	// genMu 串行化生成操作
	genMu sync.Mutex

	mu       sync.RWMutex
	current  domain.Address
	pending  domain.Username
	selected string
	domains  []string
	lastErr  error

	subs *pubsub.Latest[domain.Address]
}

// IdentityOption 可选依赖
type IdentityOption func(*IdentityService)

// WithClipboard 指定剪贴板实现
func WithClipboard(c Clipboard) IdentityOption {
	return func(s *IdentityService) { s.clipboard = c }
}

// WithIdentityMetrics 指定监控指标
func WithIdentityMetrics(m *monitoring.Metrics) IdentityOption {
	return func(s *IdentityService) { s.metrics = m }
}

// NewIdentityService 创建身份服务
func NewIdentityService(api MailAPI, repo storage.IdentityRepository, mailbox config.MailboxConfig, remoteUsernames bool, logger *zap.Logger, opts ...IdentityOption) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	length := mailbox.UsernameLength
	if length <= 0 || length > 32 {
		length = 10
	}

	domains := make([]string, 0, len(mailbox.Domains))
	for _, d := range mailbox.Domains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains = append(domains, d)
		}
	}

	s := &IdentityService{
		api:             api,
		repo:            repo,
		clipboard:       SystemClipboard{},
		validator:       domain.NewEmailValidator(mailbox.MinUsernameLength),
		logger:          logger.Named("identity"),
		usernameLength:  length,
		remoteUsernames: remoteUsernames,
		pending:         domain.GeneratedUsername(),
		domains:         domains,
		subs:            pubsub.NewLatest[domain.Address](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init 启动时恢复上次的地址，没有时生成新地址
func (s *IdentityService) Init(ctx context.Context) error {
	if s.repo != nil {
		addr, err := s.repo.LoadIdentity()
		switch {
		case err == nil && s.domainAllowed(addr.Domain):
			// 后端 24 小时后会回收邮箱，重新登记一次；失败不影响恢复
			if err := s.api.CreateMailbox(ctx, addr); err != nil {
				s.logger.Warn("failed to re-register restored mailbox", zap.String("address", addr.String()), zap.Error(err))
			}
			s.mu.Lock()
			s.current = addr
			s.selected = addr.Domain
			s.mu.Unlock()
			s.logger.Info("identity restored", zap.String("address", addr.String()))
			s.subs.Publish(addr)
			return nil
		case err == nil:
			s.logger.Info("stored identity domain no longer configured, generating new address",
				zap.String("domain", addr.Domain))
		case !errors.Is(err, storage.ErrStateNotFound):
			s.logger.Warn("failed to load identity", zap.Error(err))
		}
	}

	_, err := s.GenerateNewEmail(ctx)
	return err
}

// RefreshDomains 从后端获取域名列表；失败或为空时保留配置中的列表
func (s *IdentityService) RefreshDomains(ctx context.Context) error {
	remote, err := s.api.ListDomains(ctx)
	if err != nil {
		s.logger.Warn("failed to refresh domains, keeping configured list", zap.Error(err))
		return err
	}

	domains := make([]string, 0, len(remote))
	for _, d := range remote {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || s.validator.ValidateDomain(d) != nil {
			continue
		}
		domains = append(domains, d)
	}
	if len(domains) == 0 {
		return nil
	}

	s.mu.Lock()
	s.domains = domains
	if s.selected != "" && !containsString(domains, s.selected) {
		s.selected = ""
	}
	s.mu.Unlock()
	return nil
}

// GenerateNewEmail 生成新地址并在后端登记
//
// Custom 模式使用自定义用户名（转小写），Generated 模式随机生成。
// 失败时保留原地址并记录错误。
func (s *IdentityService) GenerateNewEmail(ctx context.Context) (domain.Address, error) {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	s.mu.RLock()
	pending := s.pending
	dom := s.selected
	if dom == "" && len(s.domains) > 0 {
		dom = s.domains[0]
	}
	s.mu.RUnlock()

	mode := string(pending.Kind())
	if dom == "" {
		return s.fail(mode, domain.ErrDomainNotAllowed)
	}

	username, err := s.resolveUsername(ctx, pending)
	if err != nil {
		return s.fail(mode, err)
	}

	addr := domain.NewAddress(username, dom)
	if err := s.api.CreateMailbox(ctx, addr); err != nil {
		return s.fail(mode, err)
	}

	s.mu.Lock()
	s.current = addr
	s.lastErr = nil
	s.mu.Unlock()

	s.metrics.RecordAddressGenerated(mode, true)
	s.logger.Info("new address generated", zap.String("address", addr.String()), zap.String("mode", mode))

	if s.repo != nil {
		if err := s.repo.SaveIdentity(addr); err != nil {
			s.logger.Error("failed to persist identity", zap.Error(err))
		}
	}

	s.subs.Publish(addr)
	return addr, nil
}

func (s *IdentityService) fail(mode string, err error) (domain.Address, error) {
	s.mu.Lock()
	s.lastErr = err
	prev := s.current
	s.mu.Unlock()

	s.metrics.RecordAddressGenerated(mode, false)
	s.logger.Warn("address generation failed, keeping previous address",
		zap.String("previous", prev.String()), zap.Error(err))
	return prev, err
}

func (s *IdentityService) resolveUsername(ctx context.Context, pending domain.Username) (string, error) {
	if text, ok := pending.Custom(); ok {
		username := domain.NormalizeUsername(text)
		if err := s.validator.ValidateUsername(username); err != nil {
			return "", err
		}
		return username, nil
	}

	if s.remoteUsernames {
		username, err := s.api.RandomUsername(ctx)
		if err == nil && s.validator.ValidateUsername(username) == nil {
			return domain.NormalizeUsername(username), nil
		}
		s.logger.Warn("remote username unavailable, generating locally", zap.Error(err))
	}
	return s.randomUsername(), nil
}

// randomUsername 本地生成由小写十六进制字符组成的用户名
func (s *IdentityService) randomUsername() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:s.usernameLength]
}

// SetCustomUsername 设置待生效的自定义用户名，不访问后端
//
// 字符集不合法时返回错误；长度不足只返回警告，不阻止提交。
func (s *IdentityService) SetCustomUsername(text string) (*domain.UsernameWarning, error) {
	if err := s.validator.ValidateUsername(text); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.pending = domain.CustomUsername(domain.NormalizeUsername(text))
	s.mu.Unlock()

	return s.validator.CheckUsername(text), nil
}

// ResetToAPIMode 下次生成使用随机用户名
func (s *IdentityService) ResetToAPIMode() {
	s.mu.Lock()
	s.pending = domain.GeneratedUsername()
	s.mu.Unlock()
}

// SelectDomain 选择下次生成使用的域名
func (s *IdentityService) SelectDomain(d string) error {
	d = strings.ToLower(strings.TrimSpace(d))

	s.mu.Lock()
	defer s.mu.Unlock()
	if !containsString(s.domains, d) {
		return domain.ErrDomainNotAllowed
	}
	s.selected = d
	return nil
}

// CopyEmailToClipboard 把当前地址写入系统剪贴板
func (s *IdentityService) CopyEmailToClipboard() error {
	addr := s.Current()
	if addr.IsZero() {
		return domain.ErrInvalidAddress
	}
	if s.clipboard == nil {
		return ErrClipboardUnavailable
	}
	return s.clipboard.WriteAll(addr.String())
}

// Current 当前地址
func (s *IdentityService) Current() domain.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Pending 待生效的用户名模式
func (s *IdentityService) Pending() domain.Username {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// LastError 最近一次生成失败的错误，成功后清空
func (s *IdentityService) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Domains 可选域名
func (s *IdentityService) Domains() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.domains...)
}

// State 返回快照
func (s *IdentityService) State() IdentityState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := IdentityState{
		Address:        s.current.String(),
		Username:       s.current.Username,
		Domain:         s.current.Domain,
		Mode:           s.pending.Kind(),
		SelectedDomain: s.selected,
		Domains:        append([]string(nil), s.domains...),
	}
	if st.SelectedDomain == "" && len(s.domains) > 0 {
		st.SelectedDomain = s.domains[0]
	}
	if text, ok := s.pending.Custom(); ok {
		st.CustomUsername = text
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Subscribe 订阅地址变更
func (s *IdentityService) Subscribe() (<-chan domain.Address, func()) {
	return s.subs.Subscribe()
}

func (s *IdentityService) domainAllowed(d string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return containsString(s.domains, d)
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
