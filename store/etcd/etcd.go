package etcd

import (
	"context"
	"errors"

	clientv3 "go.etcd.io/etcd/client/v3"
)

var (
	ErrEtcdNotInitialized = errors.New("etcd client not initialized")
	ErrInvalidConfig      = errors.New("etcd: invalid config")
)

// Etcd ETCD 客户端
type Etcd struct {
	Client *clientv3.Client
	config *Config
}

// New 创建客户端并检查第一个 endpoint 的状态
func New(ctx context.Context, config *Config) (*Etcd, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.init(); err != nil {
		return nil, err
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:            config.Endpoints,
		Username:             config.Username,
		Password:             config.Password,
		DialTimeout:          config.DialTimeout,
		DialKeepAliveTime:    config.KeepAliveTime,
		DialKeepAliveTimeout: config.KeepAliveTimeout,
	})
	if err != nil {
		return nil, err
	}

	e := &Etcd{Client: client, config: config}
	if err := e.Ping(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

// Ping 查询第一个 endpoint 状态
func (e *Etcd) Ping(ctx context.Context) error {
	if e.Client == nil {
		return ErrEtcdNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	_, err := e.Client.Status(ctx, e.config.Endpoints[0])
	return err
}

// Close 可重复调用
func (e *Etcd) Close() error {
	if e.Client == nil {
		return nil
	}
	if err := e.Client.Close(); err != nil {
		return err
	}
	e.Client = nil
	return nil
}
