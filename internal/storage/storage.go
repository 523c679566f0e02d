package storage

import (
	"errors"

	"tempmail/client/internal/domain"
)

var (
	// ErrStateNotFound 状态键不存在，调用方应使用默认值
	ErrStateNotFound = errors.New("state not found")
)

// PreferencesRepository 同步偏好的存取
type PreferencesRepository interface {
	LoadPreferences() (domain.SyncPreferences, error)
	SavePreferences(prefs domain.SyncPreferences) error
}

// LookupRepository 监控列表与已读 ID 集合的存取
//
// 每次修改整体写入；并发写入为“最后写入者获胜”，不做串行化。
type LookupRepository interface {
	LoadLookupList() ([]domain.Address, error)
	SaveLookupList(addresses []domain.Address) error
	LoadReadIDs(addr domain.Address) ([]string, error)
	SaveReadIDs(addr domain.Address, ids []string) error
	DeleteReadIDs(addr domain.Address) error
}

// IdentityRepository 最近一次生成的邮箱地址
type IdentityRepository interface {
	LoadIdentity() (domain.Address, error)
	SaveIdentity(addr domain.Address) error
}

// StateStore 聚合本地持久化状态接口
type StateStore interface {
	PreferencesRepository
	LookupRepository
	IdentityRepository

	Close() error
	Health() error
}
