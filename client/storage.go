package client

import (
	"context"
	"fmt"

	"github.com/kochabx/blogkit/log"
	"github.com/kochabx/blogkit/store/db"
	"github.com/kochabx/blogkit/store/etcd"
	"github.com/kochabx/blogkit/store/kv"
	"github.com/kochabx/blogkit/store/mongo"
	"github.com/kochabx/blogkit/store/redis"
)

// watcher 能感知其他进程对同一个 key 的修改，etcd 后端实现了它
type watcher interface {
	Watch(ctx context.Context, key string) <-chan []byte
}

// OpenStore 按 driver 打开会话持久化后端
func OpenStore(ctx context.Context, cfg StorageConfig, logger *log.Logger) (kv.Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return kv.NewMemory(), nil

	case DriverDB:
		dc, err := cfg.DB.DriverConfig()
		if err != nil {
			return nil, err
		}
		client, err := db.New(dc, db.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", dc.Driver(), err)
		}
		store, err := db.NewKV(ctx, client)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return store, nil

	case DriverRedis:
		rc := cfg.Redis
		if rc == nil {
			rc = &redis.Config{}
		}
		client, err := redis.New(ctx, rc, redis.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		return redis.NewKV(client), nil

	case DriverEtcd:
		ec := cfg.Etcd
		if ec == nil {
			ec = &etcd.Config{}
		}
		e, err := etcd.New(ctx, ec)
		if err != nil {
			return nil, fmt.Errorf("open etcd: %w", err)
		}
		return etcd.NewKV(e), nil

	case DriverMongo:
		mc := cfg.Mongo
		if mc == nil {
			mc = &mongo.Config{}
		}
		client, err := mongo.New(ctx, mc, mongo.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		return mongo.NewKV(client), nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
