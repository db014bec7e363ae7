//go:build darwin

package serialport

import "golang.org/x/sys/unix"

const (
	getTermiosIoctl = unix.TIOCGETA
	setTermiosIoctl = unix.TIOCSETA
)

func setTermiosSpeed(t *unix.Termios, rate uint32) {
	t.Ispeed = uint64(rate)
	t.Ospeed = uint64(rate)
}
