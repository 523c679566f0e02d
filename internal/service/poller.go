package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tempmail/client/internal/cache"
	"tempmail/client/internal/domain"
	"tempmail/client/internal/monitoring"
)

// PollState 轮询器状态
type PollState string

const (
	PollIdle     PollState = "idle"
	PollFetching PollState = "fetching"
)

const (
	defaultPollInterval      = 30 * time.Second
	defaultInactivityTimeout = 5 * time.Minute
)

// InboxStatus 收件箱轮询状态快照，前端据此显示倒计时
type InboxStatus struct {
	Address          string     `json:"address"`
	State            PollState  `json:"state"`
	Active           bool       `json:"active"`
	Unavailable      bool       `json:"unavailable"`
	LastError        string     `json:"lastError,omitempty"`
	MessageCount     int        `json:"messageCount"`
	Interval         float64    `json:"intervalSeconds"`
	NextFetchAt      time.Time  `json:"nextFetchAt"`
	RemainingSeconds float64    `json:"remainingSeconds"`
	LastFetchedAt    *time.Time `json:"lastFetchedAt,omitempty"`
}

// InboxPollerConfig 轮询器配置
type InboxPollerConfig struct {
	Interval          time.Duration
	InactivityTimeout time.Duration
}

// InboxPoller 定时抓取当前地址的收件箱
//
// 同一时间只有一个抓取在进行；地址变化或停止后返回的旧结果会被丢弃。
// 用户超过 InactivityTimeout 无操作时跳过定时抓取，Touch 后下一次定时抓取恢复。
type InboxPoller struct {
	api        MailAPI
	interval   time.Duration
	inactivity time.Duration
	details    *cache.LocalCache
	metrics    *monitoring.Metrics
	logger     *zap.Logger
	now        func() time.Time

	mu            sync.RWMutex
	address       domain.Address
	messages      []domain.Message
	fetching      bool
	generation    uint64
	stopped       bool
	unavailable   bool
	lastErr       error
	lastActivity  time.Time
	nextFetchAt   time.Time
	lastFetchedAt time.Time

	resetTimer chan struct{}
	stopOnce   sync.Once
	stopCh     chan struct{}
	onUpdate   func(InboxStatus)
}

// NewInboxPoller 创建收件箱轮询器
func NewInboxPoller(api MailAPI, cfg InboxPollerConfig, details *cache.LocalCache, metrics *monitoring.Metrics, logger *zap.Logger) *InboxPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = defaultInactivityTimeout
	}

	p := &InboxPoller{
		api:        api,
		interval:   cfg.Interval,
		inactivity: cfg.InactivityTimeout,
		details:    details,
		metrics:    metrics,
		logger:     logger.Named("inbox"),
		now:        time.Now,
		resetTimer: make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}
	p.lastActivity = p.now()
	p.nextFetchAt = p.lastActivity.Add(p.interval)
	return p
}

// OnUpdate 设置每次状态变化后的回调（例如推送给前端）
func (p *InboxPoller) OnUpdate(fn func(InboxStatus)) {
	p.mu.Lock()
	p.onUpdate = fn
	p.mu.Unlock()
}

// Run 运行轮询循环，直到 ctx 结束或 Stop 被调用
//
// addresses 为身份服务的地址变更订阅，可以为 nil
func (p *InboxPoller) Run(ctx context.Context, addresses <-chan domain.Address) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	p.logger.Info("inbox poller started", zap.Duration("interval", p.interval))
	defer p.logger.Info("inbox poller stopped")

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return nil

		case <-p.stopCh:
			return nil

		case addr, ok := <-addresses:
			if !ok {
				addresses = nil
				continue
			}
			p.SetAddress(addr)

		case <-timer.C:
			p.tick(ctx)
			timer.Reset(p.interval)

		case <-p.resetTimer:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.interval)
		}
	}
}

// tick 定时触发；用户不活跃时跳过
func (p *InboxPoller) tick(ctx context.Context) {
	if !p.IsActive() {
		p.metrics.RecordPollSkipped("inbox", "inactive")
		p.logger.Debug("skipping poll, user inactive")
		p.mu.Lock()
		p.nextFetchAt = p.now().Add(p.interval)
		p.mu.Unlock()
		return
	}
	p.fetch(ctx)
}

// Refresh 手动刷新
//
// 不活跃状态下不执行，返回 ErrInactive；已有抓取进行中时直接返回。
func (p *InboxPoller) Refresh(ctx context.Context) error {
	if !p.IsActive() {
		return domain.ErrInactive
	}
	if err := p.fetch(ctx); err != nil {
		return err
	}

	select {
	case p.resetTimer <- struct{}{}:
	default:
	}
	return nil
}

// fetch 执行一次抓取，结果整体替换当前邮件列表
func (p *InboxPoller) fetch(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped || p.address.IsZero() {
		p.mu.Unlock()
		return nil
	}
	if p.fetching {
		p.mu.Unlock()
		p.metrics.RecordPollSkipped("inbox", "in_flight")
		return nil
	}
	p.fetching = true
	gen := p.generation
	addr := p.address
	p.mu.Unlock()

	start := time.Now()
	msgs, err := p.api.ListMessages(ctx, addr)
	p.metrics.RecordPoll("inbox", err, time.Since(start))

	p.mu.Lock()
	p.fetching = false
	if p.stopped || gen != p.generation {
		p.mu.Unlock()
		p.logger.Debug("discarding stale inbox response", zap.String("address", addr.String()))
		return nil
	}

	now := p.now()
	p.nextFetchAt = now.Add(p.interval)
	if err != nil {
		p.unavailable = true
		p.lastErr = err
	} else {
		p.unavailable = false
		p.lastErr = nil
		p.messages = msgs
		p.lastFetchedAt = now
	}
	count := len(p.messages)
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("inbox fetch failed", zap.String("address", addr.String()), zap.Error(err))
	} else {
		p.metrics.UpdateInboxMessages(count)
	}
	p.emit()
	return err
}

// SetAddress 切换地址：清空邮件列表，下一次定时抓取使用新地址
func (p *InboxPoller) SetAddress(addr domain.Address) {
	p.mu.Lock()
	if p.address.Equal(addr) {
		p.mu.Unlock()
		return
	}
	p.address = addr
	p.messages = nil
	p.generation++
	p.unavailable = false
	p.lastErr = nil
	p.lastFetchedAt = time.Time{}
	p.mu.Unlock()

	if p.details != nil {
		p.details.Clear()
	}
	p.logger.Info("inbox address changed", zap.String("address", addr.String()))
	p.metrics.UpdateInboxMessages(0)
	p.emit()
}

// Touch 记录一次用户操作
func (p *InboxPoller) Touch() {
	p.mu.Lock()
	p.lastActivity = p.now()
	p.mu.Unlock()
}

// IsActive 距最近一次操作是否在不活跃阈值内
func (p *InboxPoller) IsActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.now().Sub(p.lastActivity) < p.inactivity
}

// Messages 当前邮件列表（抓取顺序）
func (p *InboxPoller) Messages() []domain.Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]domain.Message(nil), p.messages...)
}

// Message 获取单封邮件：优先列表中的数据，其次缓存，最后请求后端
func (p *InboxPoller) Message(ctx context.Context, id string) (*domain.Message, error) {
	p.mu.RLock()
	addr := p.address
	for _, m := range p.messages {
		if m.ID == id {
			msg := m
			p.mu.RUnlock()
			return &msg, nil
		}
	}
	p.mu.RUnlock()

	if addr.IsZero() {
		return nil, domain.ErrInvalidAddress
	}

	key := addr.String() + "/" + id
	if p.details != nil {
		if v, ok := p.details.Get(key); ok {
			msg := v.(domain.Message)
			return &msg, nil
		}
	}

	msg, err := p.api.GetMessage(ctx, addr, id)
	if err != nil {
		return nil, err
	}
	if p.details != nil {
		p.details.Set(key, *msg, 0)
	}
	return msg, nil
}

// DeleteMessage 在后端删除邮件并从本地列表移除
func (p *InboxPoller) DeleteMessage(ctx context.Context, id string) error {
	addr := p.Address()
	if addr.IsZero() {
		return domain.ErrInvalidAddress
	}
	if err := p.api.DeleteMessage(ctx, addr, id); err != nil {
		return err
	}

	p.mu.Lock()
	if p.address.Equal(addr) {
		kept := p.messages[:0:0]
		for _, m := range p.messages {
			if m.ID != id {
				kept = append(kept, m)
			}
		}
		p.messages = kept
	}
	p.mu.Unlock()

	if p.details != nil {
		p.details.Delete(addr.String() + "/" + id)
	}
	p.emit()
	return nil
}

// Address 当前轮询的地址
func (p *InboxPoller) Address() domain.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.address
}

// Status 返回状态快照
func (p *InboxPoller) Status() InboxStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.statusLocked()
}

func (p *InboxPoller) statusLocked() InboxStatus {
	now := p.now()
	st := InboxStatus{
		Address:      p.address.String(),
		State:        PollIdle,
		Active:       now.Sub(p.lastActivity) < p.inactivity,
		Unavailable:  p.unavailable,
		MessageCount: len(p.messages),
		Interval:     p.interval.Seconds(),
		NextFetchAt:  p.nextFetchAt,
	}
	if p.fetching {
		st.State = PollFetching
	}
	if p.lastErr != nil {
		st.LastError = p.lastErr.Error()
	}
	if remaining := p.nextFetchAt.Sub(now); remaining > 0 {
		st.RemainingSeconds = remaining.Seconds()
	}
	if !p.lastFetchedAt.IsZero() {
		t := p.lastFetchedAt
		st.LastFetchedAt = &t
	}
	return st
}

// Stop 停止轮询；之后返回的抓取结果全部丢弃
func (p *InboxPoller) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.generation++
		p.mu.Unlock()
		close(p.stopCh)
	})
}

func (p *InboxPoller) emit() {
	p.mu.RLock()
	fn := p.onUpdate
	st := p.statusLocked()
	p.mu.RUnlock()
	if fn != nil {
		fn(st)
	}
}
