//go:build windows

package fsutil

import (
	"errors"

	"golang.org/x/sys/windows"
)

// Directory handles opened read-only cannot be flushed on windows.
func isSyncUnsupported(err error) bool {
	return errors.Is(err, windows.ERROR_ACCESS_DENIED) || errors.Is(err, windows.ERROR_INVALID_HANDLE)
}
