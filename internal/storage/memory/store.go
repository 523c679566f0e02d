package memory

import (
	"strings"
	"sync"

	"tempmail/client/internal/domain"
	"tempmail/client/internal/storage"
)

// Store 使用内存保存本地状态，主要用于开发验证与测试
type Store struct {
	mu       sync.RWMutex
	prefs    *domain.SyncPreferences
	lookup   []domain.Address
	hasList  bool
	readIDs  map[string][]string
	identity *domain.Address

	// FailWrites 置为非 nil 时所有写操作返回该错误（用于模拟持久化失败）
	FailWrites error
}

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{
		readIDs: make(map[string][]string),
	}
}

// LoadPreferences 读取同步偏好
func (s *Store) LoadPreferences() (domain.SyncPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.prefs == nil {
		return domain.SyncPreferences{}, storage.ErrStateNotFound
	}
	return *s.prefs, nil
}

// SavePreferences 保存同步偏好
func (s *Store) SavePreferences(prefs domain.SyncPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.prefs = &prefs
	return nil
}

// LoadLookupList 读取监控列表
func (s *Store) LoadLookupList() ([]domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasList {
		return nil, storage.ErrStateNotFound
	}
	return append([]domain.Address(nil), s.lookup...), nil
}

// SaveLookupList 整体写入监控列表
func (s *Store) SaveLookupList(addresses []domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.lookup = append([]domain.Address(nil), addresses...)
	s.hasList = true
	return nil
}

// LoadReadIDs 读取已读 ID
func (s *Store) LoadReadIDs(addr domain.Address) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.readIDs[key(addr)]
	if !ok {
		return nil, storage.ErrStateNotFound
	}
	return append([]string(nil), ids...), nil
}

// SaveReadIDs 保存已读 ID
func (s *Store) SaveReadIDs(addr domain.Address, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.readIDs[key(addr)] = append([]string(nil), ids...)
	return nil
}

// DeleteReadIDs 删除已读记录
func (s *Store) DeleteReadIDs(addr domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.readIDs, key(addr))
	return nil
}

// LoadIdentity 读取上次使用的地址
func (s *Store) LoadIdentity() (domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return domain.Address{}, storage.ErrStateNotFound
	}
	return *s.identity, nil
}

// SaveIdentity 保存当前地址
func (s *Store) SaveIdentity(addr domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.identity = &addr
	return nil
}

// Close 无资源需要释放
func (s *Store) Close() error { return nil }

// Health 内存存储始终健康
func (s *Store) Health() error { return nil }

func key(addr domain.Address) string {
	return strings.ToLower(addr.String())
}
