package xdiskcache

import "io"

// Payload 是 Set 的载荷：Bytes 或 Stream 二选一。
//
// 写入路径由载荷类型静态决定，不做运行时能力探测。
type Payload interface {
	isPayload()
}

type bytesPayload []byte

func (bytesPayload) isPayload() {}

type streamPayload struct {
	r io.Reader
}

func (streamPayload) isPayload() {}

// Bytes 以整块内存数据作为载荷。nil 与空切片都写入空文件。
func Bytes(data []byte) Payload {
	return bytesPayload(data)
}

// String 以字符串作为载荷。
func String(s string) Payload {
	return bytesPayload(s)
}

// Stream 以流作为载荷，写入时读取到 EOF。
// 缓存不会关闭 r，需要关闭时由调用方负责。
func Stream(r io.Reader) Payload {
	return streamPayload{r: r}
}

func checkPayload(p Payload) error {
	switch v := p.(type) {
	case bytesPayload:
		return nil
	case streamPayload:
		if v.r == nil {
			return ErrNilPayload
		}
		return nil
	default:
		return ErrNilPayload
	}
}
