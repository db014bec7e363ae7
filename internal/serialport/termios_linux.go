//go:build linux

package serialport

import "golang.org/x/sys/unix"

const (
	getTermiosIoctl = unix.TCGETS
	setTermiosIoctl = unix.TCSETS
)

func setTermiosSpeed(t *unix.Termios, rate uint32) {
	t.Ispeed = rate
	t.Ospeed = rate
}
