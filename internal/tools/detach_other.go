//go:build !unix && !windows

package tools

import "syscall"

func detachedAttr() *syscall.SysProcAttr {
	return nil
}
