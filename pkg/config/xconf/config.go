package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	// FormatYAML YAML 格式（推荐用于 K8s ConfigMap）。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// Validator 由配置结构体的指针实现，用于加载后的语义校验。
type Validator interface {
	Validate() error
}

// Source 持有一份从文件或字节加载的强类型配置。
// 所有方法都是并发安全的。
type Source[T any] struct {
	path   string
	format Format
	opts   *Options

	mu    sync.RWMutex
	value T
}

// Load 从文件加载配置，根据扩展名检测格式（.yaml/.yml 或 .json）。
func Load[T any](path string, opts ...Option) (*Source[T], error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	s := &Source[T]{path: path, format: format, opts: applyOptions(opts)}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// FromBytes 从字节数据加载配置，需显式指定格式。
// 空数据得到 T 的零值（仍会经过 Validate）。
func FromBytes[T any](data []byte, format Format, opts ...Option) (*Source[T], error) {
	if !isValidFormat(format) {
		return nil, ErrUnsupportedFormat
	}
	s := &Source[T]{format: format, opts: applyOptions(opts)}
	v, err := decode[T](data, format, s.opts)
	if err != nil {
		return nil, err
	}
	s.value = v
	return s, nil
}

// Value 返回当前配置的副本。
func (s *Source[T]) Value() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Path 返回配置文件路径，从字节创建时为空。
func (s *Source[T]) Path() string { return s.path }

// Format 返回配置格式。
func (s *Source[T]) Format() Format { return s.format }

// Reload 重新读取配置文件。失败时保留旧值并返回错误。
func (s *Source[T]) Reload() (T, error) {
	var zero T
	if s.path == "" {
		return zero, ErrNotReloadable
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	v, err := decode[T](data, s.format, s.opts)
	if err != nil {
		return zero, err
	}

	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
	return v, nil
}

// DetectFormat 根据文件扩展名检测配置格式。
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

func applyOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func isValidFormat(format Format) bool {
	switch format {
	case FormatYAML, FormatJSON:
		return true
	default:
		return false
	}
}

// decode 解析并反序列化到新的 T，然后执行校验。
func decode[T any](data []byte, format Format, o *Options) (T, error) {
	var v T

	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return v, ErrUnsupportedFormat
	}

	k := koanf.New(o.Delim)
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return v, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}
	if err := k.UnmarshalWithConf(o.Path, &v, koanf.UnmarshalConf{Tag: o.Tag}); err != nil {
		return v, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	if val, ok := any(&v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return v, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return v, nil
}
