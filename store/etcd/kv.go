package etcd

import (
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kochabx/blogkit/store/kv"
)

// KV 基于 etcd 的 kv.Store
type KV struct {
	etcd *Etcd
}

var _ kv.Store = (*KV)(nil)

func NewKV(e *Etcd) *KV {
	return &KV{etcd: e}
}

func (s *KV) key(k string) string {
	return s.etcd.config.Prefix + k
}

func (s *KV) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.etcd.config.RequestTimeout)
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.etcd.Client.Get(ctx, s.key(key))
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, kv.ErrNotFound
	}
	return resp.Kvs[0].Value, nil
}

func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.etcd.Client.Put(ctx, s.key(key), string(value))
	return err
}

func (s *KV) Remove(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.etcd.Client.Delete(ctx, s.key(key))
	return err
}

// Watch 监听 key 的变化，其他进程登出时可感知。value 为 nil 表示被删除
func (s *KV) Watch(ctx context.Context, key string) <-chan []byte {
	out := make(chan []byte, 1)
	wch := s.etcd.Client.Watch(ctx, s.key(key))
	go func() {
		defer close(out)
		for resp := range wch {
			for _, ev := range resp.Events {
				var v []byte
				if ev.Type == clientv3.EventTypePut {
					v = ev.Kv.Value
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (s *KV) Close() error {
	return s.etcd.Close()
}
