package config

// Loader 配置加载器
type Loader interface {
	// Load 加载配置到 target
	Load(target any) error

	// Watch 监听变化，变化时回调
	Watch(callback func()) error
}
