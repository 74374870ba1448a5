package xmetrics

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Attr 是一个观测属性。零值无效，会被忽略。
type Attr struct {
	kv attribute.KeyValue
}

// String 字符串属性。
func String(key, value string) Attr {
	return Attr{kv: attribute.String(key, value)}
}

// Bool 布尔属性。
func Bool(key string, value bool) Attr {
	return Attr{kv: attribute.Bool(key, value)}
}

// Int 整数属性。
func Int(key string, value int) Attr {
	return Attr{kv: attribute.Int(key, value)}
}

// Int64 int64 属性。
func Int64(key string, value int64) Attr {
	return Attr{kv: attribute.Int64(key, value)}
}

// Duration 以 Go 的文本形式（如 "1m30s"）记录时长。
func Duration(key string, d time.Duration) Attr {
	return Attr{kv: attribute.String(key, d.String())}
}

// Key 返回属性名。
func (a Attr) Key() string { return string(a.kv.Key) }

func toOTel(attrs []Attr) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		if a.kv.Valid() {
			out = append(out, a.kv)
		}
	}
	return out
}
