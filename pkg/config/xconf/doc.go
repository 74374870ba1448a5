// Package xconf 把 YAML/JSON 配置文件加载为强类型结构体，并支持热重载。
//
// 解析基于 github.com/knadh/koanf/v2，文件监视基于 github.com/fsnotify/fsnotify。
//
// # 基本用法
//
//	type CacheConfig struct {
//		Dir string `koanf:"dir"`
//		Max string `koanf:"max"`
//	}
//
//	src, err := xconf.Load[CacheConfig]("/etc/app/cache.yaml", xconf.WithPath("cache"))
//	cfg := src.Value()
//
// # 校验
//
// 若 *T 实现了 Validator，每次加载和重载都会调用 Validate。
// 重载校验失败时保留旧值，错误通过回调返回。
//
// # 热重载
//
//	w, err := src.Watch(func(cfg CacheConfig, err error) {
//		if err != nil { return }
//		cache.Resize(...)
//	})
//	w.StartAsync()
//	defer w.Stop()
//
// 监视的是配置文件所在目录，以覆盖编辑器“写临时文件再 rename”的保存方式。
// 多次变更在防抖窗口（默认 100ms）内只触发一次重载。
package xconf
