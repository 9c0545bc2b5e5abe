//go:build !windows

package launcher

import "fmt"

func messageBox(title, message string) error {
	return fmt.Errorf("%w: message box", ErrPlatformUnsupported)
}
