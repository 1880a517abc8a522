package config

import (
	"errors"
	"os"
	"path"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kochabx/blogkit/core/tag"
	"github.com/kochabx/blogkit/core/validator"
	kerrors "github.com/kochabx/blogkit/errors"
)

// FileLoader 从文件加载配置，环境变量优先级高于文件
type FileLoader struct {
	viper     *viper.Viper
	validate  validator.Validator
	name      string
	paths     []string
	envPrefix string
	dotenv    []string
	once      bool
}

// NewFileLoader 创建文件加载器
func NewFileLoader(name string, paths []string, v *viper.Viper, validate validator.Validator) *FileLoader {
	return &FileLoader{viper: v, validate: validate, name: name, paths: paths}
}

func (l *FileLoader) setup() error {
	if l.once {
		return nil
	}
	l.once = true

	for _, f := range l.dotenv {
		// .env 可选，不存在时跳过
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return kerrors.New(500, "failed to load %s: %v", f, err)
		}
	}

	for _, p := range l.paths {
		l.viper.AddConfigPath(p)
	}
	ext := path.Ext(l.name)
	l.viper.SetConfigName(strings.TrimSuffix(l.name, ext))
	l.viper.SetConfigType(strings.TrimPrefix(ext, "."))

	if l.envPrefix != "" {
		l.viper.SetEnvPrefix(l.envPrefix)
	}
	l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.viper.AutomaticEnv()
	return nil
}

// Load 先应用 default 标签，再读文件、解码、校验。配置文件缺失时只用默认值和环境变量
func (l *FileLoader) Load(target any) error {
	if err := l.setup(); err != nil {
		return err
	}

	if err := tag.ApplyDefaults(target); err != nil {
		return kerrors.New(500, "failed to apply defaults: %v", err)
	}

	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return kerrors.New(500, "config read error: %v", err)
		}
	}

	bindEnv(l.viper, target)
	if err := l.viper.Unmarshal(target); err != nil {
		return kerrors.New(500, "config parse error: %v", err)
	}

	if l.validate != nil {
		if err := l.validate.Struct(target); err != nil {
			return kerrors.New(400, "config validation failed: %v", err)
		}
	}

	return nil
}

// Watch 依赖 fsnotify，只有读到配置文件时才生效
func (l *FileLoader) Watch(callback func()) error {
	if l.viper.ConfigFileUsed() == "" {
		return kerrors.New(404, "no config file to watch")
	}

	l.viper.OnConfigChange(func(e fsnotify.Event) {
		if callback != nil && e.Has(fsnotify.Write|fsnotify.Create) {
			callback()
		}
	})
	l.viper.WatchConfig()
	return nil
}
