package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/client/internal/domain"
	"tempmail/client/internal/storage"
)

var _ storage.StateStore = (*Store)(nil)

func TestStore(t *testing.T) {
	store := NewStore()
	addr := domain.NewAddress("Mixed", "Temp.Mail")

	t.Run("空状态返回 ErrStateNotFound", func(t *testing.T) {
		_, err := store.LoadPreferences()
		assert.ErrorIs(t, err, storage.ErrStateNotFound)
		_, err = store.LoadLookupList()
		assert.ErrorIs(t, err, storage.ErrStateNotFound)
		_, err = store.LoadIdentity()
		assert.ErrorIs(t, err, storage.ErrStateNotFound)
	})

	t.Run("保存后读取", func(t *testing.T) {
		require.NoError(t, store.SaveLookupList([]domain.Address{addr}))
		list, err := store.LoadLookupList()
		require.NoError(t, err)
		assert.Equal(t, []domain.Address{addr}, list)

		// 返回副本，修改不影响内部状态
		list[0].Username = "changed"
		again, _ := store.LoadLookupList()
		assert.Equal(t, addr, again[0])

		require.NoError(t, store.SaveReadIDs(addr, []string{"1"}))
		ids, err := store.LoadReadIDs(domain.NewAddress("mixed", "temp.mail"))
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, ids)
	})

	t.Run("模拟写入失败", func(t *testing.T) {
		failing := NewStore()
		failing.FailWrites = errors.New("disk full")
		assert.EqualError(t, failing.SavePreferences(domain.DefaultSyncPreferences()), "disk full")
		assert.EqualError(t, failing.SaveLookupList(nil), "disk full")
	})
}
