//go:build !linux && !darwin

package xfile

// DiskUsage 仅支持 Linux 和 macOS。
func DiskUsage(string) (total, free uint64, err error) {
	return 0, 0, ErrUnsupported
}
