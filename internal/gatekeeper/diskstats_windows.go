//go:build windows

package gatekeeper

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func diskFree(path string) (uint64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		return 0, fmt.Errorf("failed to stat destination disk: %w", err)
	}
	return free, nil
}
