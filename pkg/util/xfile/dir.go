package xfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDirPerm 默认目录权限
//
// 0750 权限说明：
//   - 所有者：读写执行 (7)
//   - 组：读执行 (5)
//   - 其他：无权限 (0)
//
// 符合 gosec G301 安全建议
const DefaultDirPerm = 0750

// DefaultFilePerm 默认文件权限，符合 gosec G306 安全建议。
const DefaultFilePerm = 0640

// containsNullByte 检测路径是否包含空字节。
func containsNullByte(path string) bool {
	return strings.ContainsRune(path, 0)
}

func validateDir(dir string, perm os.FileMode) error {
	if dir == "" {
		return fmt.Errorf("directory is required: %w", ErrEmptyPath)
	}
	if containsNullByte(dir) {
		return fmt.Errorf("directory contains null byte: %w", ErrNullByte)
	}
	// 目录必须包含所有者执行位（0100），否则无法进入和遍历
	if perm&0100 == 0 {
		return fmt.Errorf("directory permission %04o missing owner execute bit: %w", perm, ErrInvalidPerm)
	}
	return nil
}

// EnsureDir 确保目录存在，已存在时不修改其内容和权限。
//
// 底层使用 os.MkdirAll，会跟随符号链接。
func EnsureDir(dir string, perm os.FileMode) error {
	if err := validateDir(dir, perm); err != nil {
		return err
	}
	return os.MkdirAll(dir, perm)
}

// ResetDir 删除目录及其全部内容后重新创建空目录。
//
// 目录不存在时等价于 EnsureDir。
func ResetDir(dir string, perm os.FileMode) error {
	if err := validateDir(dir, perm); err != nil {
		return err
	}
	// 拒绝明显危险的目标，避免配置错误时清空根目录或当前目录
	clean := filepath.Clean(dir)
	if clean == "." || clean == string(filepath.Separator) {
		return fmt.Errorf("refusing to reset %q: %w", dir, ErrInvalidName)
	}
	if err := os.RemoveAll(clean); err != nil {
		return err
	}
	return os.MkdirAll(clean, perm)
}

// JoinName 将单个文件名拼接到目录下。
//
// name 必须是单个路径段：不能为空、不能包含 '/' 或 '\'、不能是 "." 或 ".."、
// 不能包含空字节。结果始终位于 dir 之内。
func JoinName(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("directory is required: %w", ErrEmptyPath)
	}
	if name == "" {
		return "", fmt.Errorf("name is required: %w", ErrEmptyPath)
	}
	if containsNullByte(dir) || containsNullByte(name) {
		return "", ErrNullByte
	}
	// 同时检查 '/' 和 '\'，避免 Windows 风格分隔符在跨平台场景下绕过检查
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return filepath.Join(dir, name), nil
}
