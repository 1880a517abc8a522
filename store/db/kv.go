package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kochabx/blogkit/store/kv"
)

// Entry 键值表的一行
type Entry struct {
	Key       string `gorm:"primaryKey;column:kv_key;size:191"`
	Value     []byte
	UpdatedAt time.Time
}

// TableName gorm 表名
func (Entry) TableName() string {
	return "blogkit_kv"
}

// KV 用一张表实现 kv.Store，sqlite 时即本地文件持久化
type KV struct {
	client *Client
}

var _ kv.Store = (*KV)(nil)

// NewKV 自动建表
func NewKV(ctx context.Context, client *Client) (*KV, error) {
	if err := client.DB().WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &KV{client: client}, nil
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var e Entry
	err := s.client.DB().WithContext(ctx).Where("kv_key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

// Set upsert
func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	return s.client.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Entry{Key: key, Value: value}).Error
}

func (s *KV) Remove(ctx context.Context, key string) error {
	return s.client.DB().WithContext(ctx).Where("kv_key = ?", key).Delete(&Entry{}).Error
}

func (s *KV) Close() error {
	return s.client.Close()
}
