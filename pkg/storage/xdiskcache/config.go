package xdiskcache

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// FileConfig 是缓存的文件配置，字段标签供 xconf 使用。
//
//	cache:
//	  dir: /var/cache/app
//	  max: 256MiB
//	  max_entries: 0
//	  max_age: 1h
type FileConfig struct {
	// Dir 缓存目录。
	Dir string `koanf:"dir"`
	// Max 字节容量，支持 "64MiB"、"1GB" 等写法。空表示默认 10 MiB。
	Max string `koanf:"max"`
	// MaxEntries 大于 0 时切换到条目数模式，Max 被忽略。
	MaxEntries int64 `koanf:"max_entries"`
	// MaxAge 条目最大存活时间，0 表示永不过期。
	MaxAge time.Duration `koanf:"max_age"`
}

// Validate 校验配置。不要求 Dir 非空，Dir 可以由命令行补充。
func (c *FileConfig) Validate() error {
	if _, err := c.MaxBytes(); err != nil {
		return err
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("%w: max_entries %d < 0", ErrInvalidConfig, c.MaxEntries)
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("%w: max_age %s < 0", ErrInvalidConfig, c.MaxAge)
	}
	return nil
}

// MaxBytes 解析 Max。为空时返回 DefaultMaxBytes。
func (c *FileConfig) MaxBytes() (int64, error) {
	if c.Max == "" {
		return DefaultMaxBytes, nil
	}
	n, err := humanize.ParseBytes(c.Max)
	if err != nil {
		return 0, fmt.Errorf("%w: max %q: %w", ErrInvalidConfig, c.Max, err)
	}
	if n == 0 || n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: max %q out of range", ErrInvalidConfig, c.Max)
	}
	return int64(n), nil
}

// Capacity 返回当前模式下的容量：条目数模式为 MaxEntries，否则为 MaxBytes。
func (c *FileConfig) Capacity() (int64, error) {
	if c.MaxEntries > 0 {
		return c.MaxEntries, nil
	}
	return c.MaxBytes()
}

// Options 把配置转换为 Option 列表，可与其他 Option 一起传给 New。
func (c *FileConfig) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	maxBytes, err := c.MaxBytes()
	if err != nil {
		return nil, err
	}
	return []Option{
		WithMaxBytes(maxBytes),
		WithMaxEntries(c.MaxEntries),
		WithMaxAge(c.MaxAge),
	}, nil
}
