package settings

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"tempmail/client/internal/domain"
	"tempmail/client/internal/pubsub"
	"tempmail/client/internal/storage"
)

// Store 进程级同步偏好
//
// 启动时从持久化存储加载一次，之后所有读取都走内存。
// 修改通过 Update 完成，并广播给订阅者（例如监控列表轮询器需要重新调度）。
type Store struct {
	mu     sync.RWMutex
	prefs  domain.SyncPreferences
	repo   storage.PreferencesRepository
	logger *zap.Logger

	subs *pubsub.Latest[domain.SyncPreferences]
}

// NewStore 加载偏好，读取失败时使用默认值
func NewStore(repo storage.PreferencesRepository, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	prefs := domain.DefaultSyncPreferences()
	if repo != nil {
		loaded, err := repo.LoadPreferences()
		switch {
		case err == nil && loaded.Validate() == nil:
			prefs = loaded
		case err == nil:
			logger.Warn("stored preferences invalid, using defaults",
				zap.Int("sync_frequency_minutes", loaded.SyncFrequencyMinutes),
				zap.String("theme", string(loaded.ThemeOverride)))
		case errors.Is(err, storage.ErrStateNotFound):
		default:
			logger.Warn("failed to load preferences, using defaults", zap.Error(err))
		}
	}

	return &Store{
		prefs:  prefs,
		repo:   repo,
		logger: logger,
		subs:   pubsub.NewLatest[domain.SyncPreferences](),
	}
}

// Get 返回当前偏好
func (s *Store) Get() domain.SyncPreferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// Update 修改偏好
//
// fn 在副本上修改，校验失败时不生效。持久化失败只记录日志，内存中的新值保留。
func (s *Store) Update(fn func(*domain.SyncPreferences)) (domain.SyncPreferences, error) {
	s.mu.Lock()
	next := s.prefs
	fn(&next)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return s.Get(), err
	}
	changed := next != s.prefs
	s.prefs = next
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.SavePreferences(next); err != nil {
			s.logger.Error("failed to persist preferences", zap.Error(err))
		}
	}

	if changed {
		s.subs.Publish(next)
	}
	return next, nil
}

// Subscribe 订阅偏好变更
//
// 通道只保留最新值；cancel 取消订阅并关闭通道。
func (s *Store) Subscribe() (<-chan domain.SyncPreferences, func()) {
	return s.subs.Subscribe()
}
