//go:build !unix

package serialport

import (
	"fmt"
	"os"
)

func configureRaw(f *os.File, baud int) error {
	return fmt.Errorf("serialport: raw termios configuration is not implemented on this platform")
}
