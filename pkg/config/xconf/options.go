package xconf

// Options 定义配置加载选项。
type Options struct {
	// Path 反序列化的起始路径，空字符串表示整个文档。
	// 例如 "cache" 只解析顶层 cache 段。
	Path string

	// Delim 配置键的分隔符，默认为 "."。
	Delim string

	// Tag 结构体标签名，默认为 "koanf"。
	Tag string
}

// Option 定义配置选项函数类型。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Delim: ".",
		Tag:   "koanf",
	}
}

// WithPath 设置反序列化的起始路径。
func WithPath(path string) Option {
	return func(o *Options) {
		o.Path = path
	}
}

// WithDelim 设置配置键分隔符。
func WithDelim(delim string) Option {
	return func(o *Options) {
		if delim != "" {
			o.Delim = delim
		}
	}
}

// WithTag 设置结构体标签名。
func WithTag(tag string) Option {
	return func(o *Options) {
		if tag != "" {
			o.Tag = tag
		}
	}
}
