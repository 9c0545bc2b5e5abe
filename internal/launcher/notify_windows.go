//go:build windows

package launcher

import "golang.org/x/sys/windows"

func messageBox(title, message string) error {
	text, err := windows.UTF16PtrFromString(message)
	if err != nil {
		return err
	}
	caption, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return err
	}
	_, err = windows.MessageBox(0, text, caption, windows.MB_OK|windows.MB_ICONERROR)
	return err
}
