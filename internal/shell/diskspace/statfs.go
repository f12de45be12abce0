//go:build linux || darwin

package diskspace

import (
	"fmt"
	"syscall"
)

// Available reports the bytes available to unprivileged processes on the
// filesystem holding path.
func Available(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
