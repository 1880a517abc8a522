package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kochabx/blogkit/log"
)

var ErrInvalidConfig = errors.New("mongo: config is required")

// Client MongoDB 客户端包装器
type Client struct {
	client *mongo.Client
	config *Config
	logger *log.Logger
}

type Option func(*Client)

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New 创建客户端并 Ping 主节点
func New(ctx context.Context, config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.Init(); err != nil {
		return nil, err
	}

	m := &Client{config: config, logger: log.G}
	for _, opt := range opts {
		opt(m)
	}

	clientOpts := options.Client().
		ApplyURI(config.uri()).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetBSONOptions(&options.BSONOptions{UseJSONStructTags: true, NilSliceAsEmpty: true}).
		SetMaxPoolSize(uint64(config.MaxPoolSize)).
		SetConnectTimeout(config.Timeout).
		SetServerSelectionTimeout(config.Timeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}
	m.client = client

	pingCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()
	if err := m.Ping(pingCtx); err != nil {
		_ = m.Close()
		return nil, err
	}

	m.logger.Debug().Str("database", config.Database).Msg("mongo client created")
	return m, nil
}

func (m *Client) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Client) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(context.Background())
}

// Database 配置中的数据库
func (m *Client) Database() *mongo.Database {
	return m.client.Database(m.config.Database)
}
