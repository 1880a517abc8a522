package db

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kochabx/blogkit/core/tag"
)

type Driver string

const (
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) String() string {
	return string(d)
}

// LogLevel gorm 日志级别，数值与 gorm/logger 一致
type LogLevel int

const (
	LogLevelSilent LogLevel = iota + 1
	LogLevelError
	LogLevelWarn
	LogLevelInfo
)

func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return LogLevelError
	case "warn":
		return LogLevelWarn
	case "info":
		return LogLevelInfo
	default:
		return LogLevelSilent
	}
}

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int           `mapstructure:"max_idle_conns" default:"2"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" default:"4"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" default:"1h"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" default:"10m"`
}

// DriverConfig 具体驱动的配置
type DriverConfig interface {
	Driver() Driver
	DSN() string
	Pool() *PoolConfig
	// Init 应用默认值
	Init() error
	LogLevel() LogLevel
}

// Config 按 Driver 选择具体驱动配置，对应配置文件 storage.db 段
type Config struct {
	Driver   Driver          `mapstructure:"driver" default:"sqlite"`
	SQLite   *SQLiteConfig   `mapstructure:"sqlite"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
	MySQL    *MySQLConfig    `mapstructure:"mysql"`
}

// DriverConfig 返回选中的驱动配置，未填写时使用该驱动的默认值
func (c *Config) DriverConfig() (DriverConfig, error) {
	switch c.Driver {
	case DriverSQLite, "":
		if c.SQLite == nil {
			c.SQLite = &SQLiteConfig{}
		}
		return c.SQLite, nil
	case DriverPostgres:
		if c.Postgres == nil {
			c.Postgres = &PostgresConfig{}
		}
		return c.Postgres, nil
	case DriverMySQL:
		if c.MySQL == nil {
			c.MySQL = &MySQLConfig{}
		}
		return c.MySQL, nil
	default:
		return nil, ErrUnsupportedDriver
	}
}

// Common 各驱动共用的字段
type Common struct {
	PoolConfig `mapstructure:",squash"`
	Level      string `mapstructure:"level" default:"silent"`
}

func (c *Common) Pool() *PoolConfig  { return &c.PoolConfig }
func (c *Common) LogLevel() LogLevel { return ParseLogLevel(c.Level) }

// SQLiteConfig 本地文件，会话只有一行，单连接足够
type SQLiteConfig struct {
	FilePath    string `mapstructure:"file_path" default:"./blogkit.db"`
	JournalMode string `mapstructure:"journal_mode" default:"WAL"`
	BusyTimeout int    `mapstructure:"busy_timeout" default:"5000"`
	Common      `mapstructure:",squash"`
}

func (c *SQLiteConfig) Driver() Driver { return DriverSQLite }

func (c *SQLiteConfig) Init() error {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns, c.MaxIdleConns = 1, 1
	}
	return tag.ApplyDefaults(c)
}

func (c *SQLiteConfig) DSN() string {
	return fmt.Sprintf("file:%s?_journal_mode=%s&_busy_timeout=%d", c.FilePath, c.JournalMode, c.BusyTimeout)
}

type PostgresConfig struct {
	Host     string `mapstructure:"host" default:"localhost"`
	Port     int    `mapstructure:"port" default:"5432"`
	User     string `mapstructure:"user" default:"postgres"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" default:"blogkit"`
	SSLMode  string `mapstructure:"sslmode" default:"disable"`
	TimeZone string `mapstructure:"timezone" default:"UTC"`
	Common   `mapstructure:",squash"`
}

func (c *PostgresConfig) Driver() Driver { return DriverPostgres }

func (c *PostgresConfig) Init() error { return tag.ApplyDefaults(c) }

func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode, c.TimeZone)
}

type MySQLConfig struct {
	Host     string        `mapstructure:"host" default:"localhost"`
	Port     int           `mapstructure:"port" default:"3306"`
	User     string        `mapstructure:"user" default:"root"`
	Password string        `mapstructure:"password"`
	Database string        `mapstructure:"database" default:"blogkit"`
	Charset  string        `mapstructure:"charset" default:"utf8mb4"`
	Timeout  time.Duration `mapstructure:"timeout" default:"10s"`
	Common   `mapstructure:",squash"`
}

func (c *MySQLConfig) Driver() Driver { return DriverMySQL }

func (c *MySQLConfig) Init() error { return tag.ApplyDefaults(c) }

func (c *MySQLConfig) DSN() string {
	q := url.Values{}
	q.Set("charset", c.Charset)
	q.Set("parseTime", "true")
	q.Set("timeout", c.Timeout.String())
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", c.User, c.Password, c.Host, c.Port, c.Database, q.Encode())
}
