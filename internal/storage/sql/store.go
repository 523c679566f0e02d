package sql

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"tempmail/client/internal/domain"
	"tempmail/client/internal/storage"
)

// 状态键
const (
	keyPreferences = "preferences"
	keyLookupList  = "lookup_list"
	keyIdentity    = "identity"
)

// StateEntry 通用键值状态行，值为 JSON
type StateEntry struct {
	Key       string `gorm:"column:state_key;primaryKey;type:varchar(64)"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (StateEntry) TableName() string { return "client_state" }

// ReadMessage 监控地址的已读邮件 ID
type ReadMessage struct {
	Address   string `gorm:"primaryKey;type:varchar(320)"`
	MessageID string `gorm:"primaryKey;type:varchar(255)"`
	CreatedAt time.Time
}

// TableName 指定表名
func (ReadMessage) TableName() string { return "read_messages" }

// Store SQL 状态存储（支持 SQLite、PostgreSQL、MySQL）
type Store struct {
	db         *gorm.DB
	driverName string
}

// NewStore 打开数据库并自动迁移
//
// driverName: "sqlite"、"postgres"、"mysql"；sqlite 的 dsn 为空时使用 "tempmail-state.db"
func NewStore(driverName, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driverName) {
	case "sqlite":
		if dsn == "" {
			dsn = "tempmail-state.db"
		}
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", driverName)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return newStore(db, driverName)
}

// NewStoreWithDB 使用已有的 gorm 连接（测试使用）
func NewStoreWithDB(db *gorm.DB) (*Store, error) {
	return newStore(db, db.Dialector.Name())
}

func newStore(db *gorm.DB, driverName string) (*Store, error) {
	store := &Store{db: db, driverName: driverName}
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// Migrate 创建或更新状态表
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&StateEntry{}, &ReadMessage{}); err != nil {
		return fmt.Errorf("failed to migrate state tables: %w", err)
	}
	return nil
}

// ========== 同步偏好 ==========

// LoadPreferences 读取同步偏好
func (s *Store) LoadPreferences() (domain.SyncPreferences, error) {
	var prefs domain.SyncPreferences
	if err := s.getJSON(keyPreferences, &prefs); err != nil {
		return domain.SyncPreferences{}, err
	}
	return prefs, nil
}

// SavePreferences 保存同步偏好
func (s *Store) SavePreferences(prefs domain.SyncPreferences) error {
	return s.putJSON(keyPreferences, prefs)
}

// ========== 监控列表 ==========

// LoadLookupList 读取监控列表
func (s *Store) LoadLookupList() ([]domain.Address, error) {
	var raw []string
	if err := s.getJSON(keyLookupList, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.Address, 0, len(raw))
	for _, item := range raw {
		if addr, err := domain.ParseAddress(item); err == nil {
			out = append(out, addr)
		}
	}
	return out, nil
}

// SaveLookupList 整体写入监控列表
func (s *Store) SaveLookupList(addresses []domain.Address) error {
	raw := make([]string, len(addresses))
	for i, a := range addresses {
		raw[i] = a.String()
	}
	return s.putJSON(keyLookupList, raw)
}

// LoadReadIDs 读取已读 ID
func (s *Store) LoadReadIDs(addr domain.Address) ([]string, error) {
	var rows []ReadMessage
	if err := s.db.Where("address = ?", addr.String()).Order("message_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load read ids: %w", err)
	}
	if len(rows) == 0 {
		return nil, storage.ErrStateNotFound
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.MessageID
	}
	return ids, nil
}

// SaveReadIDs 在一个事务中替换某地址的全部已读 ID
func (s *Store) SaveReadIDs(addr domain.Address, ids []string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("address = ?", addr.String()).Delete(&ReadMessage{}).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		rows := make([]ReadMessage, len(ids))
		for i, id := range ids {
			rows[i] = ReadMessage{Address: addr.String(), MessageID: id}
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 200).Error
	})
}

// DeleteReadIDs 删除某地址的已读记录
func (s *Store) DeleteReadIDs(addr domain.Address) error {
	return s.db.Where("address = ?", addr.String()).Delete(&ReadMessage{}).Error
}

// ========== 邮箱身份 ==========

// LoadIdentity 读取上次使用的地址
func (s *Store) LoadIdentity() (domain.Address, error) {
	var raw string
	if err := s.getJSON(keyIdentity, &raw); err != nil {
		return domain.Address{}, err
	}
	return domain.ParseAddress(raw)
}

// SaveIdentity 保存当前地址
func (s *Store) SaveIdentity(addr domain.Address) error {
	return s.putJSON(keyIdentity, addr.String())
}

// Close 关闭底层连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连接
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (s *Store) getJSON(key string, v interface{}) error {
	var entry StateEntry
	err := s.db.Where("state_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrStateNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(entry.Value), v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) putJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	entry := StateEntry{Key: key, Value: string(data)}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "state_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}
