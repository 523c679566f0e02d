package filesystem

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"

	"tempmail/client/internal/domain"
	"tempmail/client/internal/storage"
)

// 状态文件名
const (
	preferencesFile = "preferences.json"
	lookupFile      = "lookup.json"
	identityFile    = "identity.json"
	readIDsDir      = "read"
)

// Store 基于 JSON 文件的本地状态存储
//
// 目录结构:
//
//	{basePath}/preferences.json
//	{basePath}/lookup.json
//	{basePath}/identity.json
//	{basePath}/read/{blake2b(address)}.json
type Store struct {
	basePath string
}

// NewStore 创建文件系统存储实例，目录不存在时自动创建
func NewStore(basePath string) (*Store, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, fmt.Errorf("invalid base path: empty")
	}
	if strings.ContainsRune(basePath, 0) {
		return nil, fmt.Errorf("invalid base path: contains NUL")
	}

	normalized, err := filepath.Abs(filepath.Clean(basePath))
	if err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(normalized, readIDsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &Store{basePath: normalized}, nil
}

// ========== 同步偏好 ==========

// LoadPreferences 读取同步偏好
func (s *Store) LoadPreferences() (domain.SyncPreferences, error) {
	var prefs domain.SyncPreferences
	if err := s.readJSON(filepath.Join(s.basePath, preferencesFile), &prefs); err != nil {
		return domain.SyncPreferences{}, err
	}
	return prefs, nil
}

// SavePreferences 保存同步偏好
func (s *Store) SavePreferences(prefs domain.SyncPreferences) error {
	return s.writeJSON(filepath.Join(s.basePath, preferencesFile), prefs)
}

// ========== 监控列表 ==========

// LoadLookupList 读取监控列表
func (s *Store) LoadLookupList() ([]domain.Address, error) {
	var raw []string
	if err := s.readJSON(filepath.Join(s.basePath, lookupFile), &raw); err != nil {
		return nil, err
	}

	out := make([]domain.Address, 0, len(raw))
	for _, item := range raw {
		addr, err := domain.ParseAddress(item)
		if err != nil {
			continue
		}
		out = append(out, addr)
	}
	return out, nil
}

// SaveLookupList 整体写入监控列表
func (s *Store) SaveLookupList(addresses []domain.Address) error {
	raw := make([]string, len(addresses))
	for i, a := range addresses {
		raw[i] = a.String()
	}
	return s.writeJSON(filepath.Join(s.basePath, lookupFile), raw)
}

// LoadReadIDs 读取某地址的已读邮件 ID
func (s *Store) LoadReadIDs(addr domain.Address) ([]string, error) {
	var ids []string
	if err := s.readJSON(s.readIDsPath(addr), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SaveReadIDs 保存某地址的已读邮件 ID
func (s *Store) SaveReadIDs(addr domain.Address, ids []string) error {
	return s.writeJSON(s.readIDsPath(addr), ids)
}

// DeleteReadIDs 删除某地址的已读记录，文件不存在时视为成功
func (s *Store) DeleteReadIDs(addr domain.Address) error {
	if err := os.Remove(s.readIDsPath(addr)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete read ids: %w", err)
	}
	return nil
}

// ========== 邮箱身份 ==========

// LoadIdentity 读取上次使用的地址
func (s *Store) LoadIdentity() (domain.Address, error) {
	var raw string
	if err := s.readJSON(filepath.Join(s.basePath, identityFile), &raw); err != nil {
		return domain.Address{}, err
	}
	return domain.ParseAddress(raw)
}

// SaveIdentity 保存当前地址
func (s *Store) SaveIdentity(addr domain.Address) error {
	return s.writeJSON(filepath.Join(s.basePath, identityFile), addr.String())
}

// Close 文件存储无需释放资源
func (s *Store) Close() error {
	return nil
}

// Health 检查状态目录可写
func (s *Store) Health() error {
	tmp, err := os.CreateTemp(s.basePath, ".health-*")
	if err != nil {
		return fmt.Errorf("state directory not writable: %w", err)
	}
	name := tmp.Name()
	tmp.Close()
	return os.Remove(name)
}

// readIDsPath 地址中含有 @ 等字符，文件名使用 BLAKE2b 摘要
func (s *Store) readIDsPath(addr domain.Address) string {
	sum := blake2b.Sum256([]byte(strings.ToLower(addr.String())))
	return filepath.Join(s.basePath, readIDsDir, hex.EncodeToString(sum[:16])+".json")
}

func (s *Store) readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storage.ErrStateNotFound
		}
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON 先写临时文件再重命名，保证单次写入的原子性
func (s *Store) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
