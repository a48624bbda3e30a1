//go:build windows

package excel

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procFindWindowW         = user32.NewProc("FindWindowW")
	procShowWindow          = user32.NewProc("ShowWindow")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
)

const swRestore = 9

// restoreExcelWindow un-minimizes the Excel main window (class XLMAIN) and
// brings it to the foreground.
func restoreExcelWindow() error {
	className, err := windows.UTF16PtrFromString("XLMAIN")
	if err != nil {
		return err
	}
	hwnd, _, _ := procFindWindowW.Call(uintptr(unsafe.Pointer(className)), 0)
	if hwnd == 0 {
		return errors.New("excel window not found")
	}
	procShowWindow.Call(hwnd, swRestore)
	procSetForegroundWindow.Call(hwnd)
	return nil
}
