package xfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// tempPattern 临时文件名模式。前缀 "." 使其与摘要命名的正式文件区分开。
const tempPattern = ".tmp-*"

// WriteAtomic 将 r 的全部内容写入 path，返回写入的字节数。
//
// 数据先写入同目录下的临时文件，关闭后再 rename 到 path，
// 因此读者只会看到旧文件或完整的新文件。任何失败都会关闭并删除临时文件，
// 不会泄漏文件描述符。数据只保证交给文件系统层，不调用 fsync。
func WriteAtomic(path string, r io.Reader, perm os.FileMode) (int64, error) {
	if path == "" {
		return 0, fmt.Errorf("path is required: %w", ErrEmptyPath)
	}
	if r == nil {
		return 0, ErrNilReader
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return n, errors.Join(err, tmp.Close(), os.Remove(tmpPath))
	}
	if err := tmp.Chmod(perm); err != nil {
		return n, errors.Join(err, tmp.Close(), os.Remove(tmpPath))
	}
	if err := tmp.Close(); err != nil {
		return n, errors.Join(err, os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return n, errors.Join(err, os.Remove(tmpPath))
	}
	return n, nil
}

// Remove 删除 path 指向的文件。
//
// 文件不存在时返回包装了 fs.ErrNotExist 的错误，调用方可用
// errors.Is(err, fs.ErrNotExist) 区分“本来就不存在”和“已删除”。
func Remove(path string) error {
	if path == "" {
		return fmt.Errorf("path is required: %w", ErrEmptyPath)
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path, fs.ErrNotExist)
		}
		return err
	}
	return nil
}
