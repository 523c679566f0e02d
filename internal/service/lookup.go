package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tempmail/client/internal/domain"
	"tempmail/client/internal/monitoring"
	"tempmail/client/internal/notify"
	"tempmail/client/internal/pool"
	"tempmail/client/internal/settings"
	"tempmail/client/internal/storage"
)

const defaultLookupInterval = 30 * time.Second

// LookupView 监控条目的对外表示
type LookupView struct {
	Address       string     `json:"address"`
	UnreadCount   int        `json:"unreadCount"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
	ReadCount     int        `json:"readCount"`
}

// LookupManagerConfig 监控列表配置
type LookupManagerConfig struct {
	MaxEntries int
	// FallbackInterval 用户未设置同步频率时的轮询间隔
	FallbackInterval time.Duration
}

// LookupManager 维护监控列表，并为每个地址独立轮询未读数
//
// 每个条目有自己的轮询协程，同一条目的抓取不会重叠，不同条目之间可以并行，
// 并发度由共享协程池限制。持久化写入不做串行化，并发修改时以最后一次写入为准。
type LookupManager struct {
	api      MailAPI
	repo     storage.LookupRepository
	settings *settings.Store
	notifier notify.Notifier
	pool     *pool.WorkerPool
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	now      func() time.Time

	maxEntries       int
	fallbackInterval time.Duration

	mu            sync.RWMutex
	entries       []*domain.LookupEntry
	pollers       map[string]*entryPoller
	inFlight      map[string]*atomic.Bool
	runCtx        context.Context
	notifyEnabled bool
	onUpdate      func([]LookupView)

	wg sync.WaitGroup
}

// entryPoller 单个条目的轮询；busy 按地址共享，重新调度后旧的抓取结束前不会开始新的抓取
type entryPoller struct {
	cancel context.CancelFunc
	busy   *atomic.Bool
}

// NewLookupManager 创建监控列表管理器
func NewLookupManager(api MailAPI, repo storage.LookupRepository, prefs *settings.Store, notifier notify.Notifier, workers *pool.WorkerPool, cfg LookupManagerConfig, metrics *monitoring.Metrics, logger *zap.Logger) *LookupManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxEntries <= 0 || cfg.MaxEntries > domain.MaxLookupEntries {
		cfg.MaxEntries = domain.MaxLookupEntries
	}
	if cfg.FallbackInterval <= 0 {
		cfg.FallbackInterval = defaultLookupInterval
	}

	return &LookupManager{
		api:              api,
		repo:             repo,
		settings:         prefs,
		notifier:         notifier,
		pool:             workers,
		metrics:          metrics,
		logger:           logger.Named("lookup"),
		now:              time.Now,
		maxEntries:       cfg.MaxEntries,
		fallbackInterval: cfg.FallbackInterval,
		pollers:          make(map[string]*entryPoller),
		inFlight:         make(map[string]*atomic.Bool),
	}
}

// OnUpdate 设置列表变化后的回调
func (m *LookupManager) OnUpdate(fn func([]LookupView)) {
	m.mu.Lock()
	m.onUpdate = fn
	m.mu.Unlock()
}

// Load 从持久化存储恢复列表与已读集合；读取失败时从空列表开始
func (m *LookupManager) Load() {
	if m.repo == nil {
		return
	}

	addrs, err := m.repo.LoadLookupList()
	if err != nil {
		if !errors.Is(err, storage.ErrStateNotFound) {
			m.logger.Warn("failed to load lookup list, starting empty", zap.Error(err))
		}
		return
	}

	entries := make([]*domain.LookupEntry, 0, len(addrs))
	for _, addr := range addrs {
		if len(entries) >= m.maxEntries {
			m.logger.Warn("stored lookup list exceeds limit, truncating", zap.Int("max", m.maxEntries))
			break
		}
		if indexOf(entries, addr) >= 0 {
			continue
		}
		entry := domain.NewLookupEntry(addr)
		ids, err := m.repo.LoadReadIDs(addr)
		switch {
		case err == nil:
			entry.MarkRead(ids)
		case !errors.Is(err, storage.ErrStateNotFound):
			m.logger.Warn("failed to load read ids", zap.String("address", addr.String()), zap.Error(err))
		}
		entries = append(entries, entry)
	}

	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
	m.metrics.UpdateLookupEntries(len(entries))
	m.logger.Info("lookup list loaded", zap.Int("entries", len(entries)))
}

// Start 注册推送通道并启动所有条目的轮询，偏好变化时重新调度
func (m *LookupManager) Start(ctx context.Context) {
	enabled := false
	if m.notifier != nil {
		err := m.notifier.Register(ctx)
		switch {
		case err == nil:
			enabled = true
		case errors.Is(err, domain.ErrPushUnavailable):
			m.logger.Info("push channel unavailable, notifications disabled")
		default:
			m.logger.Warn("failed to register push channel, notifications disabled", zap.Error(err))
		}
	}

	// 先订阅再启动轮询，避免漏掉启动期间的偏好修改
	var (
		prefs      <-chan domain.SyncPreferences
		cancelSub  func()
		lastMinute int
	)
	if m.settings != nil {
		prefs, cancelSub = m.settings.Subscribe()
		lastMinute = m.settings.Get().SyncFrequencyMinutes
	}

	m.mu.Lock()
	m.runCtx = ctx
	m.notifyEnabled = enabled
	for _, e := range m.entries {
		m.startPollerLocked(e.Address)
	}
	m.mu.Unlock()

	if prefs == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancelSub()
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-prefs:
				if !ok {
					return
				}
				// 只修改主题时不重新调度
				if p.SyncFrequencyMinutes == lastMinute {
					continue
				}
				lastMinute = p.SyncFrequencyMinutes
				m.logger.Info("sync frequency changed, rescheduling pollers",
					zap.Int("minutes", p.SyncFrequencyMinutes),
					zap.Duration("interval", m.Interval()))
				m.Reschedule()
			}
		}
	}()
}

// Wait 等待所有轮询协程退出（ctx 结束后调用）
func (m *LookupManager) Wait() {
	m.wg.Wait()
}

// Stop 停止所有条目轮询
func (m *LookupManager) Stop() {
	m.mu.Lock()
	for key, p := range m.pollers {
		p.cancel()
		delete(m.pollers, key)
	}
	m.runCtx = nil
	m.mu.Unlock()
}

// Interval 当前条目轮询间隔：用户设置的同步频率，未设置时使用默认间隔
func (m *LookupManager) Interval() time.Duration {
	if m.settings == nil {
		return m.fallbackInterval
	}
	prefs := m.settings.Get()
	if !prefs.HasSyncFrequency() {
		return m.fallbackInterval
	}
	return time.Duration(prefs.SyncFrequencyMinutes) * time.Minute
}

// Reschedule 按当前偏好重启所有条目的轮询
func (m *LookupManager) Reschedule() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		m.stopPollerLocked(e.Address)
		m.startPollerLocked(e.Address)
	}
}

// Add 加入监控列表
func (m *LookupManager) Add(addr domain.Address) error {
	if addr.IsZero() || addr.Username == "" || addr.Domain == "" {
		return domain.ErrInvalidAddress
	}

	m.mu.Lock()
	if indexOf(m.entries, addr) >= 0 {
		m.mu.Unlock()
		return domain.ErrLookupDuplicate
	}
	if len(m.entries) >= m.maxEntries {
		m.mu.Unlock()
		return domain.ErrLookupFull
	}
	m.entries = append(m.entries, domain.NewLookupEntry(addr))
	snapshot := m.addressesLocked()
	m.startPollerLocked(addr)
	m.mu.Unlock()

	m.logger.Info("address added to lookup list", zap.String("address", addr.String()))
	m.metrics.UpdateLookupEntries(len(snapshot))
	m.persistList(snapshot)
	m.emit()
	return nil
}

// Remove 从监控列表移除；地址不存在时视为成功
func (m *LookupManager) Remove(addr domain.Address) error {
	m.mu.Lock()
	i := indexOf(m.entries, addr)
	if i < 0 {
		m.mu.Unlock()
		return nil
	}
	removed := m.entries[i].Address
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	m.stopPollerLocked(removed)
	snapshot := m.addressesLocked()
	m.mu.Unlock()

	m.logger.Info("address removed from lookup list", zap.String("address", removed.String()))
	m.metrics.UpdateLookupEntries(len(snapshot))
	m.metrics.RemoveLookupUnread(removed.String())
	m.persistList(snapshot)
	if m.repo != nil {
		if err := m.repo.DeleteReadIDs(removed); err != nil {
			m.logger.Error("failed to delete read ids", zap.String("address", removed.String()), zap.Error(err))
		}
	}
	m.emit()
	return nil
}

// MarkRead 把地址当前的全部邮件标记为已读
func (m *LookupManager) MarkRead(ctx context.Context, addr domain.Address) error {
	m.mu.RLock()
	found := indexOf(m.entries, addr) >= 0
	m.mu.RUnlock()
	if !found {
		return domain.ErrLookupNotFound
	}

	msgs, err := m.api.ListMessages(ctx, addr)
	if err != nil {
		return err
	}
	ids := messageIDs(msgs)

	m.mu.Lock()
	i := indexOf(m.entries, addr)
	if i < 0 {
		m.mu.Unlock()
		return domain.ErrLookupNotFound
	}
	entry := m.entries[i]
	entry.MarkRead(ids)
	entry.LastCheckedAt = m.now()
	readIDs := entry.ReadIDs()
	m.mu.Unlock()

	m.metrics.UpdateLookupUnread(addr.String(), 0)
	if m.repo != nil {
		if err := m.repo.SaveReadIDs(addr, readIDs); err != nil {
			m.logger.Error("failed to persist read ids", zap.String("address", addr.String()), zap.Error(err))
		}
	}
	m.emit()
	return nil
}

// List 返回监控列表快照
func (m *LookupManager) List() []LookupView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewsLocked()
}

// Entry 返回单个条目的副本
func (m *LookupManager) Entry(addr domain.Address) (*domain.LookupEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := indexOf(m.entries, addr)
	if i < 0 {
		return nil, false
	}
	return m.entries[i].Clone(), true
}

// NotificationsEnabled 推送通道是否可用
func (m *LookupManager) NotificationsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.notifyEnabled
}

// startPollerLocked 启动条目轮询，调用方需持有写锁；未 Start 时不执行
func (m *LookupManager) startPollerLocked(addr domain.Address) {
	if m.runCtx == nil {
		return
	}
	key := addressKey(addr)
	if _, ok := m.pollers[key]; ok {
		return
	}

	busy, ok := m.inFlight[key]
	if !ok {
		busy = &atomic.Bool{}
		m.inFlight[key] = busy
	}

	ctx, cancel := context.WithCancel(m.runCtx)
	p := &entryPoller{cancel: cancel, busy: busy}
	m.pollers[key] = p
	interval := m.Interval()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.pollLoop(ctx, p, addr, interval)
	}()
}

func (m *LookupManager) stopPollerLocked(addr domain.Address) {
	key := addressKey(addr)
	if p, ok := m.pollers[key]; ok {
		p.cancel()
		delete(m.pollers, key)
	}
}

// pollLoop 加入后立即检查一次，之后按间隔检查
func (m *LookupManager) pollLoop(ctx context.Context, p *entryPoller, addr domain.Address, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.schedule(ctx, p, addr)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.schedule(ctx, p, addr)
		}
	}
}

// schedule 提交一次检查；同一条目上一次检查未结束时跳过
func (m *LookupManager) schedule(ctx context.Context, p *entryPoller, addr domain.Address) {
	if !p.busy.CompareAndSwap(false, true) {
		m.metrics.RecordPollSkipped("lookup", "in_flight")
		return
	}

	task := func() {
		defer m.release(p, addr)
		m.check(ctx, addr)
	}

	if m.pool == nil {
		task()
		return
	}
	if err := m.pool.Submit(ctx, task); err != nil {
		m.release(p, addr)
		if ctx.Err() == nil {
			m.logger.Warn("failed to schedule lookup check", zap.String("address", addr.String()), zap.Error(err))
		}
	}
}

// release 清除抓取中标记；条目已移除且没有新的轮询时一并删除标记
func (m *LookupManager) release(p *entryPoller, addr domain.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.busy.Store(false)
	key := addressKey(addr)
	if _, ok := m.pollers[key]; !ok && m.inFlight[key] == p.busy {
		delete(m.inFlight, key)
	}
}

// check 抓取邮件并重新计算未读数，未读数增加时发送通知
func (m *LookupManager) check(ctx context.Context, addr domain.Address) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	msgs, err := m.api.ListMessages(ctx, addr)
	m.metrics.RecordPoll("lookup", err, time.Since(start))

	// 条目已移除或轮询已重新调度，丢弃结果
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.logger.Warn("lookup check failed", zap.String("address", addr.String()), zap.Error(err))
		return
	}

	m.mu.Lock()
	i := indexOf(m.entries, addr)
	if i < 0 {
		m.mu.Unlock()
		return
	}
	entry := m.entries[i]
	prev := entry.UnreadCount
	unread := entry.CountUnread(messageIDs(msgs))
	entry.UnreadCount = unread
	entry.LastCheckedAt = m.now()
	enabled := m.notifyEnabled
	m.mu.Unlock()

	m.metrics.UpdateLookupUnread(addr.String(), unread)
	if unread > prev {
		m.sendNotification(ctx, enabled, addr, unread)
	}
	m.emit()
}

func (m *LookupManager) sendNotification(ctx context.Context, enabled bool, addr domain.Address, unread int) {
	if !enabled || m.notifier == nil {
		m.metrics.RecordNotification("suppressed")
		return
	}

	err := m.notifier.Notify(ctx, notify.NewNotification(addr, unread))
	switch {
	case err == nil:
		m.metrics.RecordNotification("sent")
	case errors.Is(err, domain.ErrPushUnavailable):
		m.metrics.RecordNotification("unavailable")
	default:
		m.metrics.RecordNotification("failed")
		m.logger.Warn("failed to send notification", zap.String("address", addr.String()), zap.Error(err))
	}
}

func (m *LookupManager) persistList(addrs []domain.Address) {
	if m.repo == nil {
		return
	}
	if err := m.repo.SaveLookupList(addrs); err != nil {
		m.logger.Error("failed to persist lookup list", zap.Error(err))
	}
}

func (m *LookupManager) addressesLocked() []domain.Address {
	out := make([]domain.Address, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Address
	}
	return out
}

func (m *LookupManager) viewsLocked() []LookupView {
	out := make([]LookupView, len(m.entries))
	for i, e := range m.entries {
		v := LookupView{
			Address:     e.Address.String(),
			UnreadCount: e.UnreadCount,
			ReadCount:   len(e.ReadMessageIDs),
		}
		if !e.LastCheckedAt.IsZero() {
			t := e.LastCheckedAt
			v.LastCheckedAt = &t
		}
		out[i] = v
	}
	return out
}

func (m *LookupManager) emit() {
	m.mu.RLock()
	fn := m.onUpdate
	views := m.viewsLocked()
	m.mu.RUnlock()
	if fn != nil {
		fn(views)
	}
}

func indexOf(entries []*domain.LookupEntry, addr domain.Address) int {
	for i, e := range entries {
		if e.Address.Equal(addr) {
			return i
		}
	}
	return -1
}

func addressKey(addr domain.Address) string {
	return strings.ToLower(addr.String())
}
