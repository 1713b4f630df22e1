//go:build !windows

package gatekeeper

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func diskFree(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to stat destination disk: %w", err)
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}
