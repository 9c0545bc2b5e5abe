//go:build !windows

package fsutil

func isSyncUnsupported(err error) bool {
	return false
}
