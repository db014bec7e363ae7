//go:build unix

package serialport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigureRaw_UnsupportedBaudRejected(t *testing.T) {
	err := configureRaw(nil, 1234567)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported baud rate")
}

func TestBaudRatesTableCoversCommonRates(t *testing.T) {
	for _, rate := range []int{9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600} {
		_, ok := baudRates[rate]
		assert.Truef(t, ok, "expected baudRates to contain %d", rate)
	}
}
