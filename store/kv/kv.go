// Package kv 定义会话持久化使用的最小键值存储。
package kv

import (
	"context"
	"errors"
)

// ErrNotFound key 不存在
var ErrNotFound = errors.New("kv: key not found")

// Store 持久化键值存储，值为不透明字节
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}
