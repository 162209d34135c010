// Package camera checks V4L capture devices and watches for them being
// plugged in or removed.
package camera

import (
	"fmt"
	"io/fs"
	"os"
	"strings"

	"signscribe/internal/capture"
)

// Available reports whether device exists and is a character device node.
// Errors wrap capture.ErrCameraUnavailable.
func Available(device string) error {
	device = strings.TrimSpace(device)
	if device == "" {
		return fmt.Errorf("%w: no device configured", capture.ErrCameraUnavailable)
	}
	info, err := os.Stat(device)
	if err != nil {
		return fmt.Errorf("%w: %v", capture.ErrCameraUnavailable, err)
	}
	if info.Mode()&fs.ModeCharDevice == 0 {
		return fmt.Errorf("%w: %s is not a character device", capture.ErrCameraUnavailable, device)
	}
	return nil
}
