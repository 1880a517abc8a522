package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/kochabx/blogkit/store/kv"
)

// KV 用 Redis 字符串实现 kv.Store，会话跨进程、跨机器共享
type KV struct {
	client *Client
	prefix string
}

var _ kv.Store = (*KV)(nil)

// NewKV 基于已建立的客户端创建存储，Close 时一并关闭客户端
func NewKV(client *Client) *KV {
	return &KV{client: client, prefix: client.config.KeyPrefix}
}

func (s *KV) key(k string) string {
	return s.prefix + k
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNotFound
	}
	return b, err
}

// Set 不设置 TTL，过期由会话自身的 ExpiresAt 判定
func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	return s.client.client.Set(ctx, s.key(key), value, 0).Err()
}

func (s *KV) Remove(ctx context.Context, key string) error {
	return s.client.client.Del(ctx, s.key(key)).Err()
}

func (s *KV) Close() error {
	return s.client.Close()
}
