package xdiskcache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/opencontainers/go-digest"

	"github.com/omeyang/xdiskcache/pkg/util/xfile"
)

// KeyHasher 把任意 key 映射为文件名。
// 必须是纯函数，结果必须是单个合法的文件名段。
type KeyHasher func(key string) string

// SHA256Keys 使用 SHA-256 十六进制摘要作为文件名（默认）。
func SHA256Keys(key string) string {
	return digest.SHA256.FromString(key).Encoded()
}

// XXHashKeys 使用 64 位 xxHash 十六进制作为文件名。
// 比 SHA-256 快，但碰撞概率更高，适合 key 数量可控的场景。
func XXHashKeys(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

// fileStore 负责 key 到文件的映射和文件读写，不持有任何可变状态。
type fileStore struct {
	dir    string
	hasher KeyHasher
	perm   os.FileMode
}

func (s *fileStore) path(key string) (string, error) {
	return xfile.JoinName(s.dir, s.hasher(key))
}

func (s *fileStore) writeBuffer(path string, data []byte) (int64, error) {
	return xfile.WriteAtomic(path, bytes.NewReader(data), s.perm)
}

func (s *fileStore) writeStream(path string, r io.Reader) (int64, error) {
	return xfile.WriteAtomic(path, r, s.perm)
}

func (s *fileStore) write(path string, p Payload) (int64, error) {
	switch v := p.(type) {
	case bytesPayload:
		return s.writeBuffer(path, v)
	case streamPayload:
		return s.writeStream(path, v.r)
	default:
		return 0, ErrNilPayload
	}
}

func (s *fileStore) read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, notFound(err)
	}
	return data, nil
}

func (s *fileStore) readStream(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, notFound(err)
	}
	return f, nil
}

// remove 删除文件。文件不存在时返回包装了 fs.ErrNotExist 的错误。
func (s *fileStore) remove(path string) error {
	return xfile.Remove(path)
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
