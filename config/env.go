package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// bindEnv 为 target 的每个叶子字段注册 key，AutomaticEnv 才能在没有配置文件时覆盖到 Unmarshal
func bindEnv(v *viper.Viper, target any) {
	t := reflect.TypeOf(target)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return
	}
	walkKeys(t, "", 0, func(key string) {
		_ = v.BindEnv(key)
	})
}

func walkKeys(t reflect.Type, prefix string, depth int, fn func(string)) {
	if depth > 8 {
		return
	}
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft != reflect.TypeFor[time.Time]() {
			walkKeys(ft, key, depth+1, fn)
			continue
		}
		fn(key)
	}
}
