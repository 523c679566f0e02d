package settings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/client/internal/domain"
	"tempmail/client/internal/storage/memory"
)

func TestNewStore(t *testing.T) {
	t.Run("无持久化数据时使用默认值", func(t *testing.T) {
		s := NewStore(memory.NewStore(), nil)
		assert.Equal(t, domain.DefaultSyncPreferences(), s.Get())
	})

	t.Run("加载已保存的偏好", func(t *testing.T) {
		repo := memory.NewStore()
		saved := domain.SyncPreferences{SyncFrequencyMinutes: 1, ThemeOverride: domain.ThemeDark}
		require.NoError(t, repo.SavePreferences(saved))

		s := NewStore(repo, nil)
		assert.Equal(t, saved, s.Get())
	})

	t.Run("无效偏好回退默认值", func(t *testing.T) {
		repo := memory.NewStore()
		require.NoError(t, repo.SavePreferences(domain.SyncPreferences{SyncFrequencyMinutes: 7}))

		s := NewStore(repo, nil)
		assert.Equal(t, domain.DefaultSyncPreferences(), s.Get())
	})

	t.Run("无存储", func(t *testing.T) {
		s := NewStore(nil, nil)
		assert.Equal(t, domain.DefaultSyncPreferences(), s.Get())
	})
}

func TestUpdate(t *testing.T) {
	repo := memory.NewStore()
	s := NewStore(repo, nil)

	ch, cancel := s.Subscribe()
	defer cancel()

	t.Run("有效修改广播并持久化", func(t *testing.T) {
		next, err := s.Update(func(p *domain.SyncPreferences) { p.SyncFrequencyMinutes = 2 })
		require.NoError(t, err)
		assert.Equal(t, 2, next.SyncFrequencyMinutes)

		got := <-ch
		assert.Equal(t, 2, got.SyncFrequencyMinutes)

		persisted, err := repo.LoadPreferences()
		require.NoError(t, err)
		assert.Equal(t, next, persisted)
	})

	t.Run("无效修改被拒绝", func(t *testing.T) {
		_, err := s.Update(func(p *domain.SyncPreferences) { p.ThemeOverride = "neon" })
		assert.ErrorIs(t, err, domain.ErrInvalidPreferences)
		assert.Equal(t, domain.ThemeSystem, s.Get().ThemeOverride)
	})

	t.Run("持久化失败保留内存值", func(t *testing.T) {
		repo.FailWrites = errors.New("disk full")
		defer func() { repo.FailWrites = nil }()

		_, err := s.Update(func(p *domain.SyncPreferences) { p.SyncFrequencyMinutes = 10 })
		require.NoError(t, err)
		assert.Equal(t, 10, s.Get().SyncFrequencyMinutes)
		<-ch
	})

	t.Run("连续修改只保留最新值", func(t *testing.T) {
		_, _ = s.Update(func(p *domain.SyncPreferences) { p.SyncFrequencyMinutes = 1 })
		_, _ = s.Update(func(p *domain.SyncPreferences) { p.SyncFrequencyMinutes = 5 })
		got := <-ch
		assert.Equal(t, 5, got.SyncFrequencyMinutes)
	})

	t.Run("取消订阅关闭通道", func(t *testing.T) {
		sub, stop := s.Subscribe()
		stop()
		stop()
		_, ok := <-sub
		assert.False(t, ok)
	})
}
