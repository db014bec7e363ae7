// Package exitcode maps edlerr categories and high-level failure reasons to
// the CLI's process exit code convention.
//
// Exit codes are part of the toolkit's external interface (scripts and CI
// pipelines key off them), so they are centralized here rather than left as
// magic numbers scattered across cmd/edlctl.
package exitcode

import (
	"errors"

	"github.com/edlflash/edlctl/pkg/edlerr"
)

// Code is a process exit status.
type Code int

const (
	Success           Code = 0
	Usage             Code = 2
	DeviceNotFound    Code = 10
	HandshakeFailed   Code = 11
	AuthRejected      Code = 12
	DeviceNak         Code = 13
	IOError           Code = 14
	Cancelled         Code = 15
)

// FromError maps an error produced by the core packages to a process exit
// code. Unrecognized errors map to IOError, matching the teacher's
// convention of failing closed toward the most conservative category.
func FromError(err error) Code {
	if err == nil {
		return Success
	}
	if edlerr.IsCancelled(err) {
		return Cancelled
	}

	var ee *edlerr.Error
	if errors.As(err, &ee) {
		switch ee.Category {
		case edlerr.CategoryAuth:
			return AuthRejected
		case edlerr.CategoryCancellation:
			return Cancelled
		case edlerr.CategoryProtocol:
			if errors.Is(ee, edlerr.ErrDeviceNak) {
				return DeviceNak
			}
			return HandshakeFailed
		case edlerr.CategoryTransport:
			if errors.Is(ee, edlerr.ErrDisconnected) {
				return DeviceNotFound
			}
			return IOError
		default:
			return IOError
		}
	}
	return IOError
}
